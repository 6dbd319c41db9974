package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/repository"
)

const maxEventTitleLen = 160

// EventResponse is an answer to an event invitation or a change of attendance.
type EventResponse string

const (
	EventResponseInterested EventResponse = "interested"
	EventResponseGoing      EventResponse = "going"
	EventResponseDecline    EventResponse = "decline"
)

// EventInput carries the editable fields of an event. Nil pointers are left
// unchanged on update.
type EventInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	IsPrivate   *bool      `json:"is_private"`
	GroupID     *uint      `json:"group_id"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// ParticipationResult is the caller's participation after a join-related operation.
type ParticipationResult struct {
	Status           models.EventParticipantStatus `json:"status,omitempty"`
	Relationship     models.Relationship           `json:"relationship"`
	ParticipantCount int                           `json:"participant_count"`
}

// EventService implements event lifecycle and participation rules.
type EventService struct {
	store  *repository.Store
	notify notifications.Sender
}

// NewEventService returns a new EventService.
func NewEventService(store *repository.Store, notify notifications.Sender) *EventService {
	return &EventService{store: store, notify: notify}
}

// CreateEvent creates the event with the host already going. Events inside a group
// may only be created by its joined members.
func (s *EventService) CreateEvent(ctx context.Context, hostID uint, in EventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, models.NewValidationError("Event title is required")
	}
	if len(title) > maxEventTitleLen {
		return nil, models.NewValidationError("Event title too long (max 160 characters)")
	}
	if in.StartsAt == nil || in.StartsAt.IsZero() {
		return nil, models.NewValidationError("Event start time is required")
	}
	if in.EndsAt != nil && !in.EndsAt.After(*in.StartsAt) {
		return nil, models.NewValidationError("Event must end after it starts")
	}

	event := &models.Event{
		Title:    title,
		HostID:   hostID,
		GroupID:  in.GroupID,
		StartsAt: in.StartsAt.UTC(),
	}
	if in.EndsAt != nil {
		end := in.EndsAt.UTC()
		event.EndsAt = &end
	}
	if in.Description != nil {
		event.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		event.Location = strings.TrimSpace(*in.Location)
	}
	if in.IsPrivate != nil {
		event.IsPrivate = *in.IsPrivate
	}

	if in.GroupID != nil {
		if _, err := s.store.Groups.GetByID(ctx, *in.GroupID); err != nil {
			return nil, err
		}
		member, err := s.store.Groups.GetMember(ctx, *in.GroupID, hostID)
		if err != nil {
			return nil, err
		}
		if member == nil || member.Status != models.GroupMemberJoined {
			return nil, models.NewForbiddenError("Only group members can create events in this group")
		}
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Events.Create(ctx, event); err != nil {
			return err
		}
		if err := tx.Events.CreateParticipant(ctx, &models.EventParticipant{
			EventID: event.ID,
			UserID:  hostID,
			Status:  models.EventParticipantGoing,
		}); err != nil {
			return err
		}
		_, err := tx.Events.RecountParticipants(ctx, event.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.store.Events.GetForViewer(ctx, event.ID, hostID)
}

// ListEvents returns events visible to the viewer with their relationship.
func (s *EventService) ListEvents(ctx context.Context, viewerID uint, filter repository.EventFilter, limit, offset int) ([]models.Event, error) {
	if filter.Relationship != "" && filter.Relationship != models.RelationshipNone &&
		models.RelationshipRank(filter.Relationship) == models.RankNone {
		return nil, models.NewValidationError("Unknown relationship filter")
	}
	return s.store.Events.List(ctx, viewerID, filter, limit, offset)
}

// GetEvent returns one event. Private events are hidden from users with no link to them.
func (s *EventService) GetEvent(ctx context.Context, viewerID, eventID uint) (*models.Event, error) {
	event, err := s.store.Events.GetForViewer(ctx, eventID, viewerID)
	if err != nil {
		return nil, err
	}
	if event.IsPrivate && event.RelationshipRank == models.RankNone {
		return nil, models.NewNotFoundError("Event", eventID)
	}
	return event, nil
}

// UpdateEvent edits an event. Host only.
func (s *EventService) UpdateEvent(ctx context.Context, actorID, eventID uint, in EventInput) (*models.Event, error) {
	event, err := s.requireHost(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		if len(title) > maxEventTitleLen {
			return nil, models.NewValidationError("Event title too long (max 160 characters)")
		}
		event.Title = title
	}
	if in.Description != nil {
		event.Description = strings.TrimSpace(*in.Description)
	}
	if in.Location != nil {
		event.Location = strings.TrimSpace(*in.Location)
	}
	if in.IsPrivate != nil {
		event.IsPrivate = *in.IsPrivate
	}
	if in.StartsAt != nil && !in.StartsAt.IsZero() {
		event.StartsAt = in.StartsAt.UTC()
	}
	if in.EndsAt != nil {
		end := in.EndsAt.UTC()
		event.EndsAt = &end
	}
	if event.EndsAt != nil && !event.EndsAt.After(event.StartsAt) {
		return nil, models.NewValidationError("Event must end after it starts")
	}

	if err := s.store.Events.Update(ctx, event); err != nil {
		return nil, err
	}
	return s.store.Events.GetForViewer(ctx, eventID, actorID)
}

// DeleteEvent removes the event with its participants and invites. Host only.
func (s *EventService) DeleteEvent(ctx context.Context, actorID, eventID uint) error {
	if _, err := s.requireHost(ctx, actorID, eventID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Events.Delete(ctx, eventID)
	})
}

// RequestToJoin marks the caller going on a public event and files a request for a
// private one. A pending invitation is accepted as going.
func (s *EventService) RequestToJoin(ctx context.Context, userID, eventID uint) (*ParticipationResult, error) {
	event, err := s.store.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var result ParticipationResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		participant, err := tx.Events.GetParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}

		switch {
		case participant == nil:
			status := models.EventParticipantGoing
			if event.IsPrivate {
				status = models.EventParticipantRequested
			}
			participant = &models.EventParticipant{EventID: eventID, UserID: userID, Status: status}
			if err := tx.Events.CreateParticipant(ctx, participant); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewValidationError(MsgRequestAlreadySent)
				}
				return err
			}
		case participant.Status.Attending():
			return models.NewValidationError("You are already attending this event")
		case participant.Status == models.EventParticipantRequested:
			return models.NewValidationError(MsgRequestAlreadySent)
		case participant.Status == models.EventParticipantInvited:
			participant.Status = models.EventParticipantGoing
			if err := tx.Events.UpdateParticipant(ctx, participant); err != nil {
				return err
			}
			if err := tx.Invites.SetStatus(ctx, models.InstanceTypeEvent, eventID, userID, models.InviteStatusAccepted); err != nil {
				return err
			}
		}

		count, err := tx.Events.RecountParticipants(ctx, eventID)
		if err != nil {
			return err
		}
		result = ParticipationResult{
			Status:           participant.Status,
			Relationship:     eventParticipantRelationship(participant.Status),
			ParticipantCount: count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == models.EventParticipantRequested {
		requester, err := s.store.Users.GetByID(ctx, userID)
		if err != nil {
			requester = nil
		}
		notify(ctx, s.notify, notifications.Message{
			SenderID:     uintPtr(userID),
			ReceiverID:   event.HostID,
			Type:         models.NotificationEventJoinRequest,
			Image:        avatarOf(requester),
			InstanceID:   uintPtr(eventID),
			InstanceType: models.InstanceTypeEvent,
			Vars:         map[string]string{"sender": displayName(requester), "event": event.Title},
		})
	}
	return &result, nil
}

// InviteUser invites inviteeID. The host may always invite; attendees may invite to
// public events.
func (s *EventService) InviteUser(ctx context.Context, actorID, eventID, inviteeID uint) (*models.EventParticipant, error) {
	if actorID == inviteeID {
		return nil, models.NewValidationError("Cannot invite yourself")
	}
	event, err := s.store.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	inviter, err := s.store.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	invitee, err := s.store.Users.GetByID(ctx, inviteeID)
	if err != nil {
		return nil, err
	}
	if invitee.IsBlocked {
		return nil, models.NewNotFoundError("User", inviteeID)
	}
	blocked, err := s.store.Blocks.IsBlocked(ctx, actorID, inviteeID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewForbiddenError("You cannot invite this user")
	}

	var (
		participant *models.EventParticipant
		invited     bool
		approved    bool
	)
	isHost := event.HostID == actorID
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if !isHost {
			actor, err := tx.Events.GetParticipant(ctx, eventID, actorID)
			if err != nil {
				return err
			}
			if actor == nil || !actor.Status.Attending() {
				return models.NewForbiddenError("Only attendees can invite to this event")
			}
			if event.IsPrivate {
				return models.NewForbiddenError("Only the host can invite to a private event")
			}
		}

		participant, err = tx.Events.GetParticipant(ctx, eventID, inviteeID)
		if err != nil {
			return err
		}
		switch {
		case participant == nil:
			participant = &models.EventParticipant{
				EventID:   eventID,
				UserID:    inviteeID,
				Status:    models.EventParticipantInvited,
				InvitedBy: uintPtr(actorID),
			}
			if err := tx.Events.CreateParticipant(ctx, participant); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewValidationError("User has already been invited")
				}
				return err
			}
			invited = true
		case participant.Status.Attending():
			return models.NewValidationError("User is already attending this event")
		case participant.Status == models.EventParticipantInvited:
			return models.NewValidationError("User has already been invited")
		case participant.Status == models.EventParticipantRequested:
			if !isHost {
				return models.NewValidationError("User has already requested to join")
			}
			participant.Status = models.EventParticipantGoing
			participant.InvitedBy = uintPtr(actorID)
			if err := tx.Events.UpdateParticipant(ctx, participant); err != nil {
				return err
			}
			approved = true
		}

		inviteStatus := models.InviteStatusPending
		if approved {
			inviteStatus = models.InviteStatusAccepted
		}
		if err := tx.Invites.Upsert(ctx, &models.Invite{
			InviteFromID: actorID,
			InviteToID:   inviteeID,
			InstanceType: models.InstanceTypeEvent,
			InstanceID:   eventID,
			Status:       inviteStatus,
		}); err != nil {
			return err
		}
		if approved {
			_, err := tx.Events.RecountParticipants(ctx, eventID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case invited:
		notify(ctx, s.notify, notifications.Message{
			SenderID:     uintPtr(actorID),
			ReceiverID:   inviteeID,
			Type:         models.NotificationEventInvite,
			Image:        inviter.Avatar,
			InstanceID:   uintPtr(eventID),
			InstanceType: models.InstanceTypeEvent,
			Vars:         map[string]string{"sender": displayName(inviter), "event": event.Title},
		})
	case approved:
		s.notifyApproved(ctx, event, actorID, inviteeID)
	}
	return participant, nil
}

// Respond answers an invitation or changes attendance. Declining an invitation
// deletes the row; attendees leave through Leave.
func (s *EventService) Respond(ctx context.Context, userID, eventID uint, response EventResponse) (*ParticipationResult, error) {
	switch response {
	case EventResponseInterested, EventResponseGoing, EventResponseDecline:
	default:
		return nil, models.NewValidationError("Response must be interested, going or decline")
	}
	if _, err := s.store.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	result := ParticipationResult{Relationship: models.RelationshipNone}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		participant, err := tx.Events.GetParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status == models.EventParticipantRequested {
			return models.NewValidationError("You have no invitation to this event")
		}

		wasInvited := participant.Status == models.EventParticipantInvited
		if response == EventResponseDecline {
			if !wasInvited {
				return models.NewValidationError("Only a pending invitation can be declined")
			}
			if _, err := tx.Events.DeleteParticipant(ctx, eventID, userID); err != nil {
				return err
			}
			if err := tx.Invites.SetStatus(ctx, models.InstanceTypeEvent, eventID, userID, models.InviteStatusDeclined); err != nil {
				return err
			}
		} else {
			participant.Status = models.EventParticipantStatus(response)
			if err := tx.Events.UpdateParticipant(ctx, participant); err != nil {
				return err
			}
			if wasInvited {
				if err := tx.Invites.SetStatus(ctx, models.InstanceTypeEvent, eventID, userID, models.InviteStatusAccepted); err != nil {
					return err
				}
			}
			result.Status = participant.Status
			result.Relationship = eventParticipantRelationship(participant.Status)
		}

		count, err := tx.Events.RecountParticipants(ctx, eventID)
		result.ParticipantCount = count
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveRequest turns a join request into attendance. Host only.
func (s *EventService) ApproveRequest(ctx context.Context, actorID, eventID, userID uint) (*models.EventParticipant, error) {
	event, err := s.requireHost(ctx, actorID, eventID)
	if err != nil {
		return nil, err
	}

	var participant *models.EventParticipant
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		participant, err = tx.Events.GetParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != models.EventParticipantRequested {
			return models.NewValidationError("No pending join request from this user")
		}
		participant.Status = models.EventParticipantGoing
		if err := tx.Events.UpdateParticipant(ctx, participant); err != nil {
			return err
		}
		_, err := tx.Events.RecountParticipants(ctx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyApproved(ctx, event, actorID, userID)
	return participant, nil
}

// DenyRequest deletes a pending join request. Host only.
func (s *EventService) DenyRequest(ctx context.Context, actorID, eventID, userID uint) error {
	if _, err := s.requireHost(ctx, actorID, eventID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		participant, err := tx.Events.GetParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if participant == nil || participant.Status != models.EventParticipantRequested {
			return models.NewValidationError("No pending join request from this user")
		}
		_, err = tx.Events.DeleteParticipant(ctx, eventID, userID)
		return err
	})
}

// Leave removes the caller's participation, request or invitation. The host cannot leave.
func (s *EventService) Leave(ctx context.Context, userID, eventID uint) (*ParticipationResult, error) {
	event, err := s.store.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID == userID {
		return nil, models.NewValidationError("The host cannot leave the event")
	}

	result := ParticipationResult{Relationship: models.RelationshipNone}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		n, err := tx.Events.DeleteParticipant(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewValidationError("You are not part of this event")
		}
		if err := tx.Invites.SetStatus(ctx, models.InstanceTypeEvent, eventID, userID, models.InviteStatusCancelled); err != nil {
			return err
		}
		count, err := tx.Events.RecountParticipants(ctx, eventID)
		result.ParticipantCount = count
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListParticipants lists rows of one status. Attendees are visible to anyone who can
// see the event; requests and invitations only to the host.
func (s *EventService) ListParticipants(ctx context.Context, viewerID, eventID uint, status models.EventParticipantStatus, limit, offset int) ([]models.EventParticipant, error) {
	if status == "" {
		status = models.EventParticipantGoing
	}
	if !status.Valid() {
		return nil, models.NewValidationError("Unknown participant status")
	}
	event, err := s.GetEvent(ctx, viewerID, eventID)
	if err != nil {
		return nil, err
	}
	if !status.Attending() && event.HostID != viewerID {
		return nil, models.NewForbiddenError("Only the host can see requests and invitations")
	}
	return s.store.Events.ListParticipants(ctx, eventID, status, limit, offset)
}

func (s *EventService) requireHost(ctx context.Context, actorID, eventID uint) (*models.Event, error) {
	event, err := s.store.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != actorID {
		return nil, models.NewForbiddenError("Only the host can do this")
	}
	return event, nil
}

func (s *EventService) notifyApproved(ctx context.Context, event *models.Event, actorID, userID uint) {
	notify(ctx, s.notify, notifications.Message{
		SenderID:     uintPtr(actorID),
		ReceiverID:   userID,
		Type:         models.NotificationEventJoinApproved,
		InstanceID:   uintPtr(event.ID),
		InstanceType: models.InstanceTypeEvent,
		Vars:         map[string]string{"event": event.Title},
	})
}

func eventParticipantRelationship(status models.EventParticipantStatus) models.Relationship {
	switch status {
	case models.EventParticipantGoing:
		return models.RelationshipGoing
	case models.EventParticipantInterested:
		return models.RelationshipInterested
	case models.EventParticipantInvited:
		return models.RelationshipInvited
	case models.EventParticipantRequested:
		return models.RelationshipRequested
	}
	return models.RelationshipNone
}
