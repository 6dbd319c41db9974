package repository

import (
	"context"
	"errors"
	"time"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InviteRepository keeps the provenance record of group and event invitations.
type InviteRepository interface {
	Upsert(ctx context.Context, invite *models.Invite) error
	Get(ctx context.Context, instanceType models.InstanceType, instanceID, toID uint) (*models.Invite, error)
	SetStatus(ctx context.Context, instanceType models.InstanceType, instanceID, toID uint, status models.InviteStatus) error
	DeleteForInstance(ctx context.Context, instanceType models.InstanceType, instanceID uint) error
	ListPendingForUser(ctx context.Context, userID uint, instanceType models.InstanceType) ([]models.Invite, error)
}

type inviteRepository struct {
	db *gorm.DB
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *gorm.DB) InviteRepository {
	return &inviteRepository{db: db}
}

// Upsert inserts the invite or, when the target already has one for the instance,
// re-points it at the new inviter and makes it pending again.
func (r *inviteRepository) Upsert(ctx context.Context, invite *models.Invite) error {
	if invite.Status == "" {
		invite.Status = models.InviteStatusPending
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "invite_to_id"}, {Name: "instance_type"}, {Name: "instance_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"invite_from_id": invite.InviteFromID,
				"status":         invite.Status,
				"updated_at":     time.Now(),
			}),
		}).
		Create(invite).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *inviteRepository) Get(ctx context.Context, instanceType models.InstanceType, instanceID, toID uint) (*models.Invite, error) {
	var invite models.Invite
	if err := r.db.WithContext(ctx).
		Where("instance_type = ? AND instance_id = ? AND invite_to_id = ?", instanceType, instanceID, toID).
		First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &invite, nil
}

// SetStatus closes a pending invite. Invites that were already answered keep their status.
func (r *inviteRepository) SetStatus(ctx context.Context, instanceType models.InstanceType, instanceID, toID uint, status models.InviteStatus) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Invite{}).
		Where("instance_type = ? AND instance_id = ? AND invite_to_id = ? AND status = ?",
			instanceType, instanceID, toID, models.InviteStatusPending).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *inviteRepository) DeleteForInstance(ctx context.Context, instanceType models.InstanceType, instanceID uint) error {
	if err := r.db.WithContext(ctx).
		Where("instance_type = ? AND instance_id = ?", instanceType, instanceID).
		Delete(&models.Invite{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListPendingForUser returns open invites addressed to userID, newest first.
// An empty instanceType lists both kinds.
func (r *inviteRepository) ListPendingForUser(ctx context.Context, userID uint, instanceType models.InstanceType) ([]models.Invite, error) {
	var invites []models.Invite
	query := readDB(r.db).WithContext(ctx).
		Where("invite_to_id = ? AND status = ?", userID, models.InviteStatusPending)
	if instanceType != models.InstanceTypeNone {
		query = query.Where("instance_type = ?", instanceType)
	}
	if err := query.
		Preload("InviteFrom").
		Order("created_at DESC, id DESC").
		Find(&invites).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return invites, nil
}
