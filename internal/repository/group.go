package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"huddle/internal/cache"
	"huddle/internal/database"
	"huddle/internal/models"

	"gorm.io/gorm"
)

// GroupFilter narrows a group listing.
type GroupFilter struct {
	// Relationship keeps only groups where the viewer has exactly this derived relationship.
	Relationship models.Relationship
	Query        string
}

// GroupRepository defines persistence operations for groups and their members.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (*models.Group, error)
	GetForViewer(ctx context.Context, id, viewerID uint) (*models.Group, error)
	List(ctx context.Context, viewerID uint, filter GroupFilter, limit, offset int) ([]models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id uint) error

	GetMember(ctx context.Context, groupID, userID uint) (*models.GroupMember, error)
	CreateMember(ctx context.Context, member *models.GroupMember) error
	UpdateMember(ctx context.Context, member *models.GroupMember) error
	DeleteMember(ctx context.Context, groupID, userID uint) (int64, error)
	ListMembers(ctx context.Context, groupID uint, status models.GroupMemberStatus, limit, offset int) ([]models.GroupMember, error)
	RecountMembers(ctx context.Context, groupID uint) (int, error)
	ListManagerIDs(ctx context.Context, groupID uint) ([]uint, error)
	MutualGroups(ctx context.Context, userA, userB uint) ([]models.Group, error)
}

type groupRepository struct {
	db    *gorm.DB
	stale *staleKeys
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// groupRow carries the derived relationship rank next to the group columns.
type groupRow struct {
	models.Group
	Rank int `gorm:"column:relationship_rank"`
}

func (row groupRow) group() models.Group {
	g := row.Group
	g.RelationshipRank = row.Rank
	g.Relationship = models.GroupRelationship(row.Rank)
	return g
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (*models.Group, error) {
	var group models.Group
	err := cache.Aside(ctx, cache.GroupKey(id), &group, cache.GroupTTL, func() error {
		if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
			return findErr(err, "Group", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// GetForViewer loads a group with the viewer's relationship filled in.
func (r *groupRepository) GetForViewer(ctx context.Context, id, viewerID uint) (*models.Group, error) {
	var row groupRow
	expr := RelationshipExpr(GroupRelationshipSpec, viewerID)

	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Group{}).
		Select("groups.*, (?) AS relationship_rank", expr).
		Where("groups.id = ?", id).
		Take(&row).Error; err != nil {
		return nil, findErr(err, "Group", id)
	}
	group := row.group()
	return &group, nil
}

// List returns public groups and private groups the viewer is linked to, newest first.
func (r *groupRepository) List(ctx context.Context, viewerID uint, filter GroupFilter, limit, offset int) ([]models.Group, error) {
	var rows []groupRow
	expr := RelationshipExpr(GroupRelationshipSpec, viewerID)

	query := readDB(r.db).WithContext(ctx).
		Model(&models.Group{}).
		Select("groups.*, (?) AS relationship_rank", expr).
		Where("groups.is_private = ? OR (?) > 0", false, expr)

	if filter.Relationship != "" {
		query = query.Where("(?) = ?", expr, models.RelationshipRank(filter.Relationship))
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query = query.Where("LOWER(groups.name) LIKE ?", "%"+q+"%")
	}

	if err := query.
		Order("groups.created_at DESC, groups.id DESC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	groups := make([]models.Group, len(rows))
	for i, row := range rows {
		groups[i] = row.group()
	}
	return groups, nil
}

func (r *groupRepository) Update(ctx context.Context, group *models.Group) error {
	if err := r.db.WithContext(ctx).
		Model(group).
		Select("name", "description", "is_private").
		Updates(group).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.GroupKey(group.ID))
	return nil
}

// Delete removes the group together with its members and invites.
// Callers wanting atomicity pass a repository bound to a transaction.
func (r *groupRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("instance_type = ? AND instance_id = ?", models.InstanceTypeGroup, id).
		Delete(&models.Invite{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Delete(&models.Group{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.GroupKey(id))
	return nil
}

// GetMember returns the membership row, or nil when the user has none.
func (r *groupRepository) GetMember(ctx context.Context, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &member, nil
}

func (r *groupRepository) CreateMember(ctx context.Context, member *models.GroupMember) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("group %d member %d: %w", member.GroupID, member.UserID, ErrDuplicate)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) UpdateMember(ctx context.Context, member *models.GroupMember) error {
	if err := r.db.WithContext(ctx).Save(member).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupRepository) DeleteMember(ctx context.Context, groupID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// ListMembers pages through rows of one status, oldest first. An empty status lists all.
func (r *groupRepository) ListMembers(ctx context.Context, groupID uint, status models.GroupMemberStatus, limit, offset int) ([]models.GroupMember, error) {
	var members []models.GroupMember
	query := readDB(r.db).WithContext(ctx).Where("group_id = ?", groupID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.
		Preload("User").
		Order("created_at ASC, id ASC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&members).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return members, nil
}

// RecountMembers recomputes member_count from joined rows and returns the new value.
func (r *groupRepository) RecountMembers(ctx context.Context, groupID uint) (int, error) {
	db := r.db.WithContext(ctx)
	joined := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.GroupMember{}).
		Select("COUNT(*)").
		Where("group_id = ? AND status = ?", groupID, models.GroupMemberJoined)

	if err := db.Model(&models.Group{}).
		Where("id = ?", groupID).
		Update("member_count", joined).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.GroupKey(groupID))

	var count int
	if err := db.Model(&models.Group{}).Where("id = ?", groupID).Pluck("member_count", &count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// ListManagerIDs returns joined owners and admins, the recipients of join requests.
func (r *groupRepository) ListManagerIDs(ctx context.Context, groupID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND status = ? AND role IN ?", groupID, models.GroupMemberJoined,
			[]models.GroupRole{models.GroupRoleOwner, models.GroupRoleAdmin}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// MutualGroups returns groups both users have joined.
func (r *groupRepository) MutualGroups(ctx context.Context, userA, userB uint) ([]models.Group, error) {
	var groups []models.Group
	joinedBy := func(id uint) *gorm.DB {
		return r.db.Model(&models.GroupMember{}).
			Select("group_id").
			Where("user_id = ? AND status = ?", id, models.GroupMemberJoined)
	}

	if err := readDB(r.db).WithContext(ctx).
		Where("groups.id IN (?)", joinedBy(userA)).
		Where("groups.id IN (?)", joinedBy(userB)).
		Order("groups.name ASC, groups.id ASC").
		Find(&groups).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range groups {
		groups[i].RelationshipRank = models.RankMember
		groups[i].Relationship = models.RelationshipJoined
	}
	return groups, nil
}
