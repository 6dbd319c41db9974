package service

import (
	"context"
	"errors"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/observability"
	"huddle/internal/repository"
)

// Messages returned to clients for rejected friend operations.
const (
	MsgRequestAlreadySent = "Request already sent"
	MsgAlreadyFriends     = "You are already friends"
	MsgInvalidTransition  = "Invalid status transition"
)

// FriendService provides friend-request and friendship business logic.
type FriendService struct {
	store  *repository.Store
	notify notifications.Sender
}

// NewFriendService returns a new FriendService.
func NewFriendService(store *repository.Store, notify notifications.Sender) *FriendService {
	return &FriendService{store: store, notify: notify}
}

// SendFriendRequest opens a pending request from fromID to toID. A previously
// rejected pair is reopened in the new direction; a pending or connected pair is
// refused without touching the row.
func (s *FriendService) SendFriendRequest(ctx context.Context, fromID, toID uint, attachmentID *uint) (*models.Friendship, error) {
	if fromID == toID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	sender, err := s.store.Users.GetByID(ctx, fromID)
	if err != nil {
		return nil, err
	}
	target, err := s.store.Users.GetByID(ctx, toID)
	if err != nil {
		return nil, err
	}
	if target.IsBlocked {
		return nil, models.NewForbiddenError("You cannot send a friend request to this user")
	}
	blocked, err := s.store.Blocks.IsBlocked(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewForbiddenError("You cannot send a friend request to this user")
	}

	if attachmentID != nil {
		attachment, err := s.store.Attachments.GetByID(ctx, *attachmentID)
		if err != nil {
			return nil, err
		}
		if attachment.OwnerID != fromID || attachment.OwnerType != "" {
			return nil, models.NewForbiddenError("Attachment is not available")
		}
	}

	var friendship *models.Friendship
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		existing, err := tx.Friends.GetBetween(ctx, fromID, toID)
		if err != nil {
			return err
		}

		if existing != nil {
			switch existing.Status {
			case models.FriendshipStatusPending:
				return models.NewValidationError(MsgRequestAlreadySent)
			case models.FriendshipStatusConnected:
				return models.NewValidationError(MsgAlreadyFriends)
			}
			ok, err := tx.Friends.Reopen(ctx, existing, fromID, toID, attachmentID)
			if err != nil {
				return err
			}
			if !ok {
				return models.NewValidationError(MsgRequestAlreadySent)
			}
			friendship = existing
		} else {
			friendship = &models.Friendship{
				RequesterID:  fromID,
				AddresseeID:  toID,
				Status:       models.FriendshipStatusPending,
				AttachmentID: attachmentID,
			}
			if err := tx.Friends.Create(ctx, friendship); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewValidationError(MsgRequestAlreadySent)
				}
				return err
			}
		}

		if attachmentID != nil {
			return tx.Attachments.SetOwner(ctx, *attachmentID, models.AttachmentOwnerFriendship)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.FriendshipTransitions.WithLabelValues(string(models.FriendshipStatusPending)).Inc()

	notify(ctx, s.notify, notifications.Message{
		SenderID:     uintPtr(fromID),
		ReceiverID:   toID,
		Type:         models.NotificationFriendRequest,
		Image:        sender.Avatar,
		InstanceID:   uintPtr(friendship.ID),
		InstanceType: models.InstanceTypeFriendship,
		Vars:         map[string]string{"sender": displayName(sender)},
	})

	return s.store.Friends.GetByID(ctx, friendship.ID)
}

// UpdateStatus answers a pending request. Only the addressee may answer and only
// pending -> connected and pending -> rejected are allowed. Accepting notifies the
// requester exactly once, even when two answers race.
func (s *FriendService) UpdateStatus(ctx context.Context, actorID, requestID uint, status models.FriendshipStatus) (*models.Friendship, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("Unknown friend request status")
	}

	friendship, err := s.store.Friends.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.AddresseeID != actorID {
		return nil, models.NewForbiddenError("Only the recipient can answer a friend request")
	}
	if !friendship.Status.CanTransitionTo(status) {
		return nil, models.NewValidationError(MsgInvalidTransition)
	}

	ok, err := s.store.Friends.TransitionStatus(ctx, requestID, friendship.Status, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another answer won the race; the row no longer holds the status we checked.
		return nil, models.NewValidationError(MsgInvalidTransition)
	}
	observability.FriendshipTransitions.WithLabelValues(string(status)).Inc()

	if status == models.FriendshipStatusConnected {
		notify(ctx, s.notify, notifications.Message{
			SenderID:     uintPtr(actorID),
			ReceiverID:   friendship.RequesterID,
			Type:         models.NotificationFriendRequestAccepted,
			Image:        avatarOf(friendship.Addressee),
			InstanceID:   uintPtr(friendship.ID),
			InstanceType: models.InstanceTypeFriendship,
			Vars:         map[string]string{"sender": displayName(friendship.Addressee)},
		})
	}

	return s.store.Friends.GetByID(ctx, requestID)
}

// WithdrawFriendRequest lets the requester delete their own pending request.
func (s *FriendService) WithdrawFriendRequest(ctx context.Context, actorID, requestID uint) error {
	friendship, err := s.store.Friends.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if friendship.RequesterID != actorID {
		return models.NewForbiddenError("You can only withdraw requests you sent")
	}
	if friendship.Status != models.FriendshipStatusPending {
		return models.NewValidationError("Friend request is not pending")
	}

	n, err := s.store.Friends.DeleteBetween(ctx, friendship.RequesterID, friendship.AddresseeID, models.FriendshipStatusPending)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewValidationError("Friend request is not pending")
	}
	return nil
}

// RemoveFriend deletes the connected edge between the two users.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, otherID uint) error {
	n, err := s.store.Friends.DeleteBetween(ctx, userID, otherID, models.FriendshipStatusConnected)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewNotFoundError("Friendship", otherID)
	}
	return nil
}

// GetMyFriends returns connected friends, most recently connected first.
func (s *FriendService) GetMyFriends(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	friends, err := s.store.Friends.ListFriends(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.Friends.CountFriends(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return friends, total, nil
}

// GetConnectionRequests returns pending requests addressed to the user.
func (s *FriendService) GetConnectionRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.store.Friends.ListIncoming(ctx, userID)
}

// GetSentRequests returns pending requests the user sent.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.store.Friends.ListSent(ctx, userID)
}

// FriendshipStatus is the viewer-relative status plus the request id when one exists.
type FriendshipStatus struct {
	Status    models.FriendStatus `json:"status"`
	RequestID uint                `json:"request_id,omitempty"`
}

// GetFriendshipStatus reports how userID relates to otherID.
func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, otherID uint) (*FriendshipStatus, error) {
	if _, err := s.store.Users.GetByID(ctx, otherID); err != nil {
		return nil, err
	}
	friendship, err := s.store.Friends.GetBetween(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	out := &FriendshipStatus{Status: friendship.StatusFor(userID)}
	if friendship != nil {
		out.RequestID = friendship.ID
	}
	return out, nil
}

// GetMutualFriends returns users connected to both. Blocked pairs see nothing.
func (s *FriendService) GetMutualFriends(ctx context.Context, userID, otherID uint) ([]models.User, error) {
	if err := s.checkMutualAccess(ctx, userID, otherID); err != nil {
		return nil, err
	}
	return s.store.Friends.MutualFriends(ctx, userID, otherID)
}

// GetMutualGroups returns groups both users have joined.
func (s *FriendService) GetMutualGroups(ctx context.Context, userID, otherID uint) ([]models.Group, error) {
	if err := s.checkMutualAccess(ctx, userID, otherID); err != nil {
		return nil, err
	}
	return s.store.Groups.MutualGroups(ctx, userID, otherID)
}

// GetMutualEvents returns events both users attend.
func (s *FriendService) GetMutualEvents(ctx context.Context, userID, otherID uint) ([]models.Event, error) {
	if err := s.checkMutualAccess(ctx, userID, otherID); err != nil {
		return nil, err
	}
	return s.store.Events.MutualEvents(ctx, userID, otherID)
}

func (s *FriendService) checkMutualAccess(ctx context.Context, userID, otherID uint) error {
	if userID == otherID {
		return models.NewValidationError("Cannot compare a user with themselves")
	}
	other, err := s.store.Users.GetByID(ctx, otherID)
	if err != nil {
		return err
	}
	if other.IsBlocked {
		return models.NewNotFoundError("User", otherID)
	}
	blocked, err := s.store.Blocks.IsBlocked(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewNotFoundError("User", otherID)
	}
	return nil
}

func avatarOf(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Avatar
}
