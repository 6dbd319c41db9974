package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle/internal/cache"
	"huddle/internal/database"
	"huddle/internal/models"

	"gorm.io/gorm"
)

// EventFilter narrows an event listing.
type EventFilter struct {
	Relationship models.Relationship
	GroupID      *uint
	Upcoming     bool
	Query        string
}

// EventRepository defines persistence operations for events and their participants.
type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id uint) (*models.Event, error)
	GetForViewer(ctx context.Context, id, viewerID uint) (*models.Event, error)
	List(ctx context.Context, viewerID uint, filter EventFilter, limit, offset int) ([]models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id uint) error

	GetParticipant(ctx context.Context, eventID, userID uint) (*models.EventParticipant, error)
	CreateParticipant(ctx context.Context, participant *models.EventParticipant) error
	UpdateParticipant(ctx context.Context, participant *models.EventParticipant) error
	DeleteParticipant(ctx context.Context, eventID, userID uint) (int64, error)
	ListParticipants(ctx context.Context, eventID uint, status models.EventParticipantStatus, limit, offset int) ([]models.EventParticipant, error)
	RecountParticipants(ctx context.Context, eventID uint) (int, error)
	MutualEvents(ctx context.Context, userA, userB uint) ([]models.Event, error)
}

type eventRepository struct {
	db    *gorm.DB
	stale *staleKeys
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

type eventRow struct {
	models.Event
	Rank int `gorm:"column:relationship_rank"`
}

func (row eventRow) event() models.Event {
	e := row.Event
	e.RelationshipRank = row.Rank
	e.Relationship = models.EventRelationship(row.Rank)
	return e
}

var attendingStatuses = []models.EventParticipantStatus{
	models.EventParticipantGoing,
	models.EventParticipantInterested,
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	err := cache.Aside(ctx, cache.EventKey(id), &event, cache.EventTTL, func() error {
		if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
			return findErr(err, "Event", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetForViewer(ctx context.Context, id, viewerID uint) (*models.Event, error) {
	var row eventRow
	expr := RelationshipExpr(EventRelationshipSpec, viewerID)

	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Event{}).
		Select("events.*, (?) AS relationship_rank", expr).
		Where("events.id = ?", id).
		Take(&row).Error; err != nil {
		return nil, findErr(err, "Event", id)
	}
	event := row.event()
	return &event, nil
}

// List returns public events and private events the viewer is linked to, soonest first.
func (r *eventRepository) List(ctx context.Context, viewerID uint, filter EventFilter, limit, offset int) ([]models.Event, error) {
	var rows []eventRow
	expr := RelationshipExpr(EventRelationshipSpec, viewerID)

	query := readDB(r.db).WithContext(ctx).
		Model(&models.Event{}).
		Select("events.*, (?) AS relationship_rank", expr).
		Where("events.is_private = ? OR (?) > 0", false, expr)

	if filter.Relationship != "" {
		query = query.Where("(?) = ?", expr, models.RelationshipRank(filter.Relationship))
	}
	if filter.GroupID != nil {
		query = query.Where("events.group_id = ?", *filter.GroupID)
	}
	if filter.Upcoming {
		query = query.Where("events.starts_at >= ?", time.Now())
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		query = query.Where("LOWER(events.title) LIKE ?", "%"+q+"%")
	}

	if err := query.
		Order("events.starts_at ASC, events.id ASC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	events := make([]models.Event, len(rows))
	for i, row := range rows {
		events[i] = row.event()
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, event *models.Event) error {
	if err := r.db.WithContext(ctx).
		Model(event).
		Select("title", "description", "location", "is_private", "starts_at", "ends_at").
		Updates(event).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.EventKey(event.ID))
	return nil
}

func (r *eventRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("event_id = ?", id).Delete(&models.EventParticipant{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Where("instance_type = ? AND instance_id = ?", models.InstanceTypeEvent, id).
		Delete(&models.Invite{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := db.Delete(&models.Event{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.EventKey(id))
	return nil
}

func (r *eventRepository) GetParticipant(ctx context.Context, eventID, userID uint) (*models.EventParticipant, error) {
	var participant models.EventParticipant
	if err := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		First(&participant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &participant, nil
}

func (r *eventRepository) CreateParticipant(ctx context.Context, participant *models.EventParticipant) error {
	if err := r.db.WithContext(ctx).Create(participant).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("event %d participant %d: %w", participant.EventID, participant.UserID, ErrDuplicate)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) UpdateParticipant(ctx context.Context, participant *models.EventParticipant) error {
	if err := r.db.WithContext(ctx).Save(participant).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *eventRepository) DeleteParticipant(ctx context.Context, eventID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Delete(&models.EventParticipant{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *eventRepository) ListParticipants(ctx context.Context, eventID uint, status models.EventParticipantStatus, limit, offset int) ([]models.EventParticipant, error) {
	var participants []models.EventParticipant
	query := readDB(r.db).WithContext(ctx).Where("event_id = ?", eventID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.
		Preload("User").
		Order("created_at ASC, id ASC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&participants).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return participants, nil
}

// RecountParticipants recomputes participant_count from going and interested rows.
func (r *eventRepository) RecountParticipants(ctx context.Context, eventID uint) (int, error) {
	db := r.db.WithContext(ctx)
	attending := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.EventParticipant{}).
		Select("COUNT(*)").
		Where("event_id = ? AND status IN ?", eventID, attendingStatuses)

	if err := db.Model(&models.Event{}).
		Where("id = ?", eventID).
		Update("participant_count", attending).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.EventKey(eventID))

	var count int
	if err := db.Model(&models.Event{}).Where("id = ?", eventID).Pluck("participant_count", &count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MutualEvents returns events both users are going to or interested in.
func (r *eventRepository) MutualEvents(ctx context.Context, userA, userB uint) ([]models.Event, error) {
	var events []models.Event
	attendedBy := func(id uint) *gorm.DB {
		return r.db.Model(&models.EventParticipant{}).
			Select("event_id").
			Where("user_id = ? AND status IN ?", id, attendingStatuses)
	}

	if err := readDB(r.db).WithContext(ctx).
		Where("events.id IN (?)", attendedBy(userA)).
		Where("events.id IN (?)", attendedBy(userB)).
		Order("events.starts_at ASC, events.id ASC").
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}
