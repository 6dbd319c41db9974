// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"huddle/internal/middleware"
	"huddle/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account logs in with.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint

	passwordHash string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	// #nosec G404: acceptable for seeding
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(time.Now().UnixNano())), nextID: 1000}
}

func (f *Factory) password() string {
	if f.opts.SkipBcrypt {
		return DefaultPassword
	}
	if f.passwordHash == "" {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		f.passwordHash = string(hashed)
	}
	return f.passwordHash
}

// pastTime returns a moment within the last MaxDays days.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

func (f *Factory) persist(value interface{}, assign func(uint)) error {
	if f.opts.DryRun {
		f.nextID++
		assign(f.nextID)
		return nil
	}
	return f.db.Create(value).Error
}

// BuildUser constructs an activated sample user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := gofakeit.FirstName(), gofakeit.LastName()
	username := fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999))
	if len(username) > 30 {
		username = username[:30]
	}
	user := &models.User{
		Username:    username,
		Email:       fmt.Sprintf("%s@example.com", username),
		Password:    f.password(),
		FirstName:   first,
		LastName:    last,
		Bio:         gofakeit.Sentence(10),
		Avatar:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		IsActivated: true,
		LoginType:   models.LoginTypeEmail,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.persist(user, func(id uint) { user.ID = id }); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateFriendship persists a friendship between two users with the given status.
func (f *Factory) CreateFriendship(requester, addressee *models.User, status models.FriendshipStatus) (*models.Friendship, error) {
	friendship := &models.Friendship{
		RequesterID: requester.ID,
		AddresseeID: addressee.ID,
		Status:      status,
		CreatedAt:   f.pastTime(),
	}
	if err := f.persist(friendship, func(id uint) { friendship.ID = id }); err != nil {
		return nil, err
	}
	return friendship, nil
}

// BuildGroup constructs a sample group owned by owner without persisting it.
func (f *Factory) BuildGroup(owner *models.User, overrides ...func(*models.Group)) *models.Group {
	group := &models.Group{
		Name:        fmt.Sprintf("%s %s", gofakeit.HipsterWord(), gofakeit.RandomString(groupSuffixes)),
		Description: gofakeit.Paragraph(1, 2, 12, " "),
		OwnerID:     owner.ID,
		IsPrivate:   f.rng.Float32() < 0.3,
		CreatedAt:   f.pastTime(),
	}
	for _, override := range overrides {
		override(group)
	}
	return group
}

// CreateGroup persists a sample group along with the owner's joined membership.
func (f *Factory) CreateGroup(owner *models.User, overrides ...func(*models.Group)) (*models.Group, error) {
	group := f.BuildGroup(owner, overrides...)
	if err := f.persist(group, func(id uint) { group.ID = id }); err != nil {
		return nil, err
	}
	if _, err := f.AddGroupMember(group, owner, models.GroupMemberJoined, models.GroupRoleOwner, nil); err != nil {
		return nil, err
	}
	return group, nil
}

// AddGroupMember persists a membership row. invitedBy is only meaningful for invitations.
func (f *Factory) AddGroupMember(group *models.Group, user *models.User, status models.GroupMemberStatus, role models.GroupRole, invitedBy *models.User) (*models.GroupMember, error) {
	member := &models.GroupMember{
		GroupID: group.ID,
		UserID:  user.ID,
		Status:  status,
		Role:    role,
	}
	if invitedBy != nil {
		member.InvitedBy = &invitedBy.ID
	}
	if err := f.persist(member, func(id uint) { member.ID = id }); err != nil {
		return nil, err
	}
	return member, nil
}

// BuildEvent constructs a sample event hosted by host without persisting it.
// Roughly a third of the events lie in the past.
func (f *Factory) BuildEvent(host *models.User, group *models.Group, overrides ...func(*models.Event)) *models.Event {
	offset := time.Duration(f.rng.Intn(60*24)-20*24) * time.Hour
	startsAt := time.Now().Add(offset).Truncate(time.Hour)
	endsAt := startsAt.Add(time.Duration(1+f.rng.Intn(4)) * time.Hour)

	event := &models.Event{
		Title:       gofakeit.RandomString(eventKinds) + " " + gofakeit.HipsterWord(),
		Description: gofakeit.Paragraph(1, 2, 12, " "),
		HostID:      host.ID,
		Location:    fmt.Sprintf("%s, %s", gofakeit.Street(), gofakeit.City()),
		IsPrivate:   f.rng.Float32() < 0.25,
		StartsAt:    startsAt,
		EndsAt:      &endsAt,
	}
	if group != nil {
		event.GroupID = &group.ID
		event.IsPrivate = event.IsPrivate || group.IsPrivate
	}
	for _, override := range overrides {
		override(event)
	}
	return event
}

// CreateEvent persists a sample event and marks the host as going.
func (f *Factory) CreateEvent(host *models.User, group *models.Group, overrides ...func(*models.Event)) (*models.Event, error) {
	event := f.BuildEvent(host, group, overrides...)
	if err := f.persist(event, func(id uint) { event.ID = id }); err != nil {
		return nil, err
	}
	if _, err := f.AddParticipant(event, host, models.EventParticipantGoing, nil); err != nil {
		return nil, err
	}
	return event, nil
}

// AddParticipant persists an event participation row.
func (f *Factory) AddParticipant(event *models.Event, user *models.User, status models.EventParticipantStatus, invitedBy *models.User) (*models.EventParticipant, error) {
	participant := &models.EventParticipant{
		EventID: event.ID,
		UserID:  user.ID,
		Status:  status,
	}
	if invitedBy != nil {
		participant.InvitedBy = &invitedBy.ID
	}
	if err := f.persist(participant, func(id uint) { participant.ID = id }); err != nil {
		return nil, err
	}
	return participant, nil
}

// BuildPost constructs a text post with a realistic created_at spread.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    user.ID,
		Content:   gofakeit.Paragraph(1, 3, 12, "\n"),
		CreatedAt: f.pastTime(),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists multiple posts in a single DB call.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		middleware.Logger.Info("[dry-run] CreatePostsBatch", "posts", len(posts))
		return nil
	}
	return f.db.CreateInBatches(posts, 200).Error
}

var groupSuffixes = []string{
	"Club", "Collective", "Crew", "Circle", "Society", "Guild", "Meetup", "Squad",
}

var eventKinds = []string{
	"Picnic", "Hike", "Board Game Night", "Book Swap", "Potluck", "Pub Quiz",
	"Gallery Walk", "Run", "Workshop", "Jam Session", "Movie Night",
}
