package service

import (
	"context"
	"errors"
	"strings"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/repository"
)

const maxGroupNameLen = 120

// GroupInput carries the editable fields of a group. Nil pointers are left unchanged
// on update.
type GroupInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	IsPrivate   *bool   `json:"is_private"`
}

// MembershipResult is the caller's membership after a join-related operation.
type MembershipResult struct {
	Status       models.GroupMemberStatus `json:"status"`
	Relationship models.Relationship      `json:"relationship"`
	MemberCount  int                      `json:"member_count"`
}

// GroupService implements group lifecycle and membership rules.
type GroupService struct {
	store  *repository.Store
	notify notifications.Sender
}

// NewGroupService returns a new GroupService.
func NewGroupService(store *repository.Store, notify notifications.Sender) *GroupService {
	return &GroupService{store: store, notify: notify}
}

// CreateGroup creates the group and joins the creator as owner.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID uint, in GroupInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, models.NewValidationError("Group name is required")
	}
	if len(name) > maxGroupNameLen {
		return nil, models.NewValidationError("Group name too long (max 120 characters)")
	}

	group := &models.Group{Name: name, OwnerID: ownerID}
	if in.Description != nil {
		group.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsPrivate != nil {
		group.IsPrivate = *in.IsPrivate
	}

	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Groups.Create(ctx, group); err != nil {
			return err
		}
		if err := tx.Groups.CreateMember(ctx, &models.GroupMember{
			GroupID: group.ID,
			UserID:  ownerID,
			Status:  models.GroupMemberJoined,
			Role:    models.GroupRoleOwner,
		}); err != nil {
			return err
		}
		_, err := tx.Groups.RecountMembers(ctx, group.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.store.Groups.GetForViewer(ctx, group.ID, ownerID)
}

// ListGroups returns groups visible to the viewer with their relationship.
func (s *GroupService) ListGroups(ctx context.Context, viewerID uint, filter repository.GroupFilter, limit, offset int) ([]models.Group, error) {
	if filter.Relationship != "" && filter.Relationship != models.RelationshipNone &&
		models.RelationshipRank(filter.Relationship) == models.RankNone {
		return nil, models.NewValidationError("Unknown relationship filter")
	}
	return s.store.Groups.List(ctx, viewerID, filter, limit, offset)
}

// GetGroup returns one group. Private groups are hidden from users with no link to them.
func (s *GroupService) GetGroup(ctx context.Context, viewerID, groupID uint) (*models.Group, error) {
	group, err := s.store.Groups.GetForViewer(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if group.IsPrivate && group.RelationshipRank == models.RankNone {
		return nil, models.NewNotFoundError("Group", groupID)
	}
	return group, nil
}

// UpdateGroup edits a group. Owners and admins only.
func (s *GroupService) UpdateGroup(ctx context.Context, actorID, groupID uint, in GroupInput) (*models.Group, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManager(ctx, s.store, groupID, actorID); err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		if len(name) > maxGroupNameLen {
			return nil, models.NewValidationError("Group name too long (max 120 characters)")
		}
		group.Name = name
	}
	if in.Description != nil {
		group.Description = strings.TrimSpace(*in.Description)
	}
	if in.IsPrivate != nil {
		group.IsPrivate = *in.IsPrivate
	}
	if err := s.store.Groups.Update(ctx, group); err != nil {
		return nil, err
	}
	return s.store.Groups.GetForViewer(ctx, groupID, actorID)
}

// DeleteGroup removes the group with its members and invites. Owners and admins only.
func (s *GroupService) DeleteGroup(ctx context.Context, actorID, groupID uint) error {
	if _, err := s.store.Groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.requireManager(ctx, tx, groupID, actorID); err != nil {
			return err
		}
		return tx.Groups.Delete(ctx, groupID)
	})
}

// RequestToJoin joins a public group directly and files a request for a private one.
// A pending invitation is accepted instead.
func (s *GroupService) RequestToJoin(ctx context.Context, userID, groupID uint) (*MembershipResult, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var result MembershipResult
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		member, err := tx.Groups.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}

		switch {
		case member == nil:
			status := models.GroupMemberJoined
			if group.IsPrivate {
				status = models.GroupMemberRequested
			}
			member = &models.GroupMember{GroupID: groupID, UserID: userID, Status: status, Role: models.GroupRoleMember}
			if err := tx.Groups.CreateMember(ctx, member); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewValidationError(MsgRequestAlreadySent)
				}
				return err
			}
		case member.Status == models.GroupMemberJoined:
			return models.NewValidationError("You are already a member of this group")
		case member.Status == models.GroupMemberRequested:
			return models.NewValidationError(MsgRequestAlreadySent)
		case member.Status == models.GroupMemberInvited:
			member.Status = models.GroupMemberJoined
			if err := tx.Groups.UpdateMember(ctx, member); err != nil {
				return err
			}
			if err := tx.Invites.SetStatus(ctx, models.InstanceTypeGroup, groupID, userID, models.InviteStatusAccepted); err != nil {
				return err
			}
		}

		count, err := tx.Groups.RecountMembers(ctx, groupID)
		if err != nil {
			return err
		}
		result = MembershipResult{
			Status:       member.Status,
			Relationship: groupMemberRelationship(member.Status),
			MemberCount:  count,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == models.GroupMemberRequested {
		s.notifyManagers(ctx, group, userID)
	}
	return &result, nil
}

// InviteUser invites inviteeID on behalf of actorID. Members may invite to public
// groups; private groups accept invitations from owners and admins only. Inviting
// someone who asked to join approves them when the inviter can manage the group.
func (s *GroupService) InviteUser(ctx context.Context, actorID, groupID, inviteeID uint) (*models.GroupMember, error) {
	if actorID == inviteeID {
		return nil, models.NewValidationError("Cannot invite yourself")
	}
	group, err := s.store.Groups.GetByID(ctx, groupID)
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
		member  *models.GroupMember
		invited bool
		joined  bool
	)
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		actor, err := tx.Groups.GetMember(ctx, groupID, actorID)
		if err != nil {
			return err
		}
		if actor == nil || actor.Status != models.GroupMemberJoined {
			return models.NewForbiddenError("Only members can invite to this group")
		}
		if group.IsPrivate && !actor.Role.CanManage() {
			return models.NewForbiddenError("Only group admins can invite to a private group")
		}

		member, err = tx.Groups.GetMember(ctx, groupID, inviteeID)
		if err != nil {
			return err
		}
		switch {
		case member == nil:
			member = &models.GroupMember{
				GroupID:   groupID,
				UserID:    inviteeID,
				Status:    models.GroupMemberInvited,
				Role:      models.GroupRoleMember,
				InvitedBy: uintPtr(actorID),
			}
			if err := tx.Groups.CreateMember(ctx, member); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return models.NewValidationError("User has already been invited")
				}
				return err
			}
			invited = true
		case member.Status == models.GroupMemberJoined:
			return models.NewValidationError("User is already a member of this group")
		case member.Status == models.GroupMemberInvited:
			return models.NewValidationError("User has already been invited")
		case member.Status == models.GroupMemberRequested:
			if !actor.Role.CanManage() {
				return models.NewValidationError("User has already requested to join")
			}
			member.Status = models.GroupMemberJoined
			member.InvitedBy = uintPtr(actorID)
			if err := tx.Groups.UpdateMember(ctx, member); err != nil {
				return err
			}
			joined = true
		}

		inviteStatus := models.InviteStatusPending
		if joined {
			inviteStatus = models.InviteStatusAccepted
		}
		if err := tx.Invites.Upsert(ctx, &models.Invite{
			InviteFromID: actorID,
			InviteToID:   inviteeID,
			InstanceType: models.InstanceTypeGroup,
			InstanceID:   groupID,
			Status:       inviteStatus,
		}); err != nil {
			return err
		}
		if joined {
			_, err := tx.Groups.RecountMembers(ctx, groupID)
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
			Type:         models.NotificationGroupInvite,
			Image:        inviter.Avatar,
			InstanceID:   uintPtr(groupID),
			InstanceType: models.InstanceTypeGroup,
			Vars:         map[string]string{"sender": displayName(inviter), "group": group.Name},
		})
	case joined:
		s.notifyApproved(ctx, group, actorID, inviteeID)
	}
	return member, nil
}

// RespondToInvite accepts or declines the caller's pending invitation.
func (s *GroupService) RespondToInvite(ctx context.Context, userID, groupID uint, accept bool) (*MembershipResult, error) {
	if _, err := s.store.Groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}

	result := MembershipResult{Relationship: models.RelationshipNone}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		member, err := tx.Groups.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil || member.Status != models.GroupMemberInvited {
			return models.NewValidationError("You have no pending invitation to this group")
		}

		if accept {
			member.Status = models.GroupMemberJoined
			if err := tx.Groups.UpdateMember(ctx, member); err != nil {
				return err
			}
			if err := tx.Invites.SetStatus(ctx, models.InstanceTypeGroup, groupID, userID, models.InviteStatusAccepted); err != nil {
				return err
			}
			result.Status = models.GroupMemberJoined
			result.Relationship = models.RelationshipJoined
		} else {
			if _, err := tx.Groups.DeleteMember(ctx, groupID, userID); err != nil {
				return err
			}
			if err := tx.Invites.SetStatus(ctx, models.InstanceTypeGroup, groupID, userID, models.InviteStatusDeclined); err != nil {
				return err
			}
		}

		count, err := tx.Groups.RecountMembers(ctx, groupID)
		result.MemberCount = count
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveRequest turns a join request into membership. Owners and admins only.
func (s *GroupService) ApproveRequest(ctx context.Context, actorID, groupID, userID uint) (*models.GroupMember, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var member *models.GroupMember
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.requireManager(ctx, tx, groupID, actorID); err != nil {
			return err
		}
		member, err = tx.Groups.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil || member.Status != models.GroupMemberRequested {
			return models.NewValidationError("No pending join request from this user")
		}
		member.Status = models.GroupMemberJoined
		if err := tx.Groups.UpdateMember(ctx, member); err != nil {
			return err
		}
		_, err := tx.Groups.RecountMembers(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyApproved(ctx, group, actorID, userID)
	return member, nil
}

// DenyRequest deletes a pending join request. Owners and admins only.
func (s *GroupService) DenyRequest(ctx context.Context, actorID, groupID, userID uint) error {
	if _, err := s.store.Groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := s.requireManager(ctx, tx, groupID, actorID); err != nil {
			return err
		}
		member, err := tx.Groups.GetMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if member == nil || member.Status != models.GroupMemberRequested {
			return models.NewValidationError("No pending join request from this user")
		}
		_, err = tx.Groups.DeleteMember(ctx, groupID, userID)
		return err
	})
}

// Leave removes the caller's membership, request or invitation. The owner cannot leave.
func (s *GroupService) Leave(ctx context.Context, userID, groupID uint) (*MembershipResult, error) {
	group, err := s.store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.OwnerID == userID {
		return nil, models.NewValidationError("The owner cannot leave the group")
	}

	result := MembershipResult{Relationship: models.RelationshipNone}
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		n, err := tx.Groups.DeleteMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NewValidationError("You are not a member of this group")
		}
		if err := tx.Invites.SetStatus(ctx, models.InstanceTypeGroup, groupID, userID, models.InviteStatusCancelled); err != nil {
			return err
		}
		count, err := tx.Groups.RecountMembers(ctx, groupID)
		result.MemberCount = count
		return err
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListMembers lists rows of one status. Joined members are visible to anyone who can
// see the group; requests and invitations only to owners and admins.
func (s *GroupService) ListMembers(ctx context.Context, viewerID, groupID uint, status models.GroupMemberStatus, limit, offset int) ([]models.GroupMember, error) {
	if status == "" {
		status = models.GroupMemberJoined
	}
	if !status.Valid() {
		return nil, models.NewValidationError("Unknown member status")
	}
	if _, err := s.GetGroup(ctx, viewerID, groupID); err != nil {
		return nil, err
	}
	if status != models.GroupMemberJoined {
		if err := s.requireManager(ctx, s.store, groupID, viewerID); err != nil {
			return nil, err
		}
	}
	return s.store.Groups.ListMembers(ctx, groupID, status, limit, offset)
}

// ListMyInvites returns the caller's pending group and event invitations.
func (s *GroupService) ListMyInvites(ctx context.Context, userID uint, instanceType models.InstanceType) ([]models.Invite, error) {
	return s.store.Invites.ListPendingForUser(ctx, userID, instanceType)
}

func (s *GroupService) requireManager(ctx context.Context, store *repository.Store, groupID, userID uint) error {
	member, err := store.Groups.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || member.Status != models.GroupMemberJoined || !member.Role.CanManage() {
		return models.NewForbiddenError("Only group owners and admins can do this")
	}
	return nil
}

func (s *GroupService) notifyManagers(ctx context.Context, group *models.Group, requesterID uint) {
	requester, err := s.store.Users.GetByID(ctx, requesterID)
	if err != nil {
		requester = nil
	}
	managers, err := s.store.Groups.ListManagerIDs(ctx, group.ID)
	if err != nil {
		return
	}
	for _, managerID := range managers {
		notify(ctx, s.notify, notifications.Message{
			SenderID:     uintPtr(requesterID),
			ReceiverID:   managerID,
			Type:         models.NotificationGroupJoinRequest,
			Image:        avatarOf(requester),
			InstanceID:   uintPtr(group.ID),
			InstanceType: models.InstanceTypeGroup,
			Vars:         map[string]string{"sender": displayName(requester), "group": group.Name},
		})
	}
}

func (s *GroupService) notifyApproved(ctx context.Context, group *models.Group, actorID, userID uint) {
	notify(ctx, s.notify, notifications.Message{
		SenderID:     uintPtr(actorID),
		ReceiverID:   userID,
		Type:         models.NotificationGroupJoinApproved,
		InstanceID:   uintPtr(group.ID),
		InstanceType: models.InstanceTypeGroup,
		Vars:         map[string]string{"group": group.Name},
	})
}

func groupMemberRelationship(status models.GroupMemberStatus) models.Relationship {
	switch status {
	case models.GroupMemberJoined:
		return models.RelationshipJoined
	case models.GroupMemberInvited:
		return models.RelationshipInvited
	case models.GroupMemberRequested:
		return models.RelationshipRequested
	}
	return models.RelationshipNone
}
