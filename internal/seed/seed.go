package seed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/repository"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers  int
	NumGroups int
	NumEvents int
	NumPosts  int
	// FriendsPerUser is the average number of friendship rows touching each user.
	FriendsPerUser int
	SkipBcrypt     bool
	DryRun         bool
	MaxDays        int
}

// Presets are named option sets selectable from cmd/seed.
var Presets = map[string]Options{
	"minimal": {NumUsers: 5, NumGroups: 2, NumEvents: 3, NumPosts: 10, FriendsPerUser: 2},
	"demo":    {NumUsers: 50, NumGroups: 10, NumEvents: 25, NumPosts: 200, FriendsPerUser: 6},
	"large":   {NumUsers: 1000, NumGroups: 120, NumEvents: 400, NumPosts: 5000, FriendsPerUser: 15, SkipBcrypt: true},
}

// PresetNames lists the available presets in a stable order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result summarises what a seeding run created.
type Result struct {
	Users       []*models.User
	Friendships int
	Groups      []*models.Group
	Events      []*models.Event
	Posts       int
}

// Seeder orchestrates the factory to produce a connected social graph.
type Seeder struct {
	db      *gorm.DB
	store   *repository.Store
	factory *Factory
	opts    Options
}

// NewSeeder builds a Seeder over db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{
		db:      db,
		store:   repository.NewStore(db),
		factory: NewFactory(db, opts),
		opts:    opts,
	}
}

// ApplyPreset replaces the seeder options with a named preset, keeping the
// DryRun and SkipBcrypt flags already set.
func (s *Seeder) ApplyPreset(name string) error {
	preset, ok := Presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(PresetNames(), ", "))
	}
	preset.DryRun = s.opts.DryRun
	preset.SkipBcrypt = preset.SkipBcrypt || s.opts.SkipBcrypt
	preset.MaxDays = s.opts.MaxDays
	s.opts = preset
	s.factory = NewFactory(s.db, preset)
	return nil
}

// seededTables are cleared child-first.
var seededTables = []string{
	"notifications", "invites", "event_participants", "events", "group_members", "groups",
	"posts", "attachments", "friendships", "device_tokens", "user_blocks", "users",
}

// ClearAll removes every row the seeder can create.
func (s *Seeder) ClearAll() error {
	middleware.Logger.Info("Clearing existing data")
	quoted := make([]string, len(seededTables))
	for i, table := range seededTables {
		quoted[i] = `"` + table + `"`
	}
	if s.db.Dialector.Name() == "postgres" {
		sql := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		return s.db.Exec(sql).Error
	}
	for i, table := range seededTables {
		if err := s.db.Exec("DELETE FROM " + quoted[i]).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run seeds users, friendships, groups, events and posts in that order.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	middleware.Logger.Info("Starting database seeding",
		"users", s.opts.NumUsers, "groups", s.opts.NumGroups, "events", s.opts.NumEvents, "posts", s.opts.NumPosts)

	res := &Result{}
	users, err := s.SeedUsers(s.opts.NumUsers)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	res.Users = users

	if res.Friendships, err = s.SeedFriendMesh(users); err != nil {
		return nil, fmt.Errorf("seed friendships: %w", err)
	}
	if res.Groups, err = s.SeedGroups(ctx, users, s.opts.NumGroups); err != nil {
		return nil, fmt.Errorf("seed groups: %w", err)
	}
	if res.Events, err = s.SeedEvents(ctx, users, res.Groups, s.opts.NumEvents); err != nil {
		return nil, fmt.Errorf("seed events: %w", err)
	}
	if res.Posts, err = s.SeedPosts(users, s.opts.NumPosts); err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}

	middleware.Logger.Info("Database seeding completed",
		"users", len(res.Users), "friendships", res.Friendships,
		"groups", len(res.Groups), "events", len(res.Events), "posts", res.Posts)
	return res, nil
}

// SeedUsers creates count users. The first three get fixed, memorable usernames.
func (s *Seeder) SeedUsers(count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)
	fixed := []string{"alice", "bob", "carol"}

	for i := 0; i < count; i++ {
		var override func(*models.User)
		if i < len(fixed) {
			name := fixed[i]
			override = func(u *models.User) {
				u.Username = name
				u.Email = name + "@example.com"
			}
		} else {
			n := i
			override = func(u *models.User) {
				u.Username = fmt.Sprintf("%s%d", truncate(u.Username, 24), n)
				u.Email = u.Username + "@example.com"
			}
		}

		user, err := s.factory.CreateUser(override)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
		if (i+1)%100 == 0 {
			middleware.Logger.Info("Created users", "count", i+1)
		}
	}
	return users, nil
}

// SeedFriendMesh links users with a mix of connected, pending and rejected
// friendships. Each unordered pair gets at most one row.
func (s *Seeder) SeedFriendMesh(users []*models.User) (int, error) {
	if len(users) < 2 {
		return 0, nil
	}
	perUser := s.opts.FriendsPerUser
	if perUser <= 0 {
		perUser = 3
	}

	seen := make(map[[2]uint]bool)
	created := 0
	target := len(users) * perUser / 2
	for attempts := 0; created < target && attempts < target*4; attempts++ {
		a := users[s.factory.rng.Intn(len(users))]
		b := users[s.factory.rng.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}
		low, high := models.CanonicalPair(a.ID, b.ID)
		key := [2]uint{low, high}
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, err := s.factory.CreateFriendship(a, b, s.friendshipStatus()); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Seeder) friendshipStatus() models.FriendshipStatus {
	switch r := s.factory.rng.Float32(); {
	case r < 0.7:
		return models.FriendshipStatusConnected
	case r < 0.9:
		return models.FriendshipStatusPending
	default:
		return models.FriendshipStatusRejected
	}
}

// SeedGroups creates count groups with randomly drawn members in every
// membership state, then recomputes member counts.
func (s *Seeder) SeedGroups(ctx context.Context, users []*models.User, count int) ([]*models.Group, error) {
	if len(users) == 0 {
		return nil, nil
	}
	groups := make([]*models.Group, 0, count)
	for i := 0; i < count; i++ {
		owner := users[s.factory.rng.Intn(len(users))]
		group, err := s.factory.CreateGroup(owner)
		if err != nil {
			return nil, err
		}

		for _, user := range s.sample(users, owner.ID, len(users)/3) {
			status := s.groupMemberStatus(group.IsPrivate)
			var inviter *models.User
			if status == models.GroupMemberInvited {
				inviter = owner
			}
			role := models.GroupRoleMember
			if status == models.GroupMemberJoined && s.factory.rng.Float32() < 0.1 {
				role = models.GroupRoleAdmin
			}
			if _, err := s.factory.AddGroupMember(group, user, status, role, inviter); err != nil {
				return nil, err
			}
		}

		if !s.opts.DryRun {
			if group.MemberCount, err = s.store.Groups.RecountMembers(ctx, group.ID); err != nil {
				return nil, err
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func (s *Seeder) groupMemberStatus(private bool) models.GroupMemberStatus {
	r := s.factory.rng.Float32()
	switch {
	case private && r < 0.25:
		return models.GroupMemberRequested
	case r < 0.4:
		return models.GroupMemberInvited
	default:
		return models.GroupMemberJoined
	}
}

// SeedEvents creates count events, about half of them attached to a group
// hosted by one of its owners, then recomputes participant counts.
func (s *Seeder) SeedEvents(ctx context.Context, users []*models.User, groups []*models.Group, count int) ([]*models.Event, error) {
	if len(users) == 0 {
		return nil, nil
	}
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	events := make([]*models.Event, 0, count)
	for i := 0; i < count; i++ {
		host := users[s.factory.rng.Intn(len(users))]
		var group *models.Group
		if len(groups) > 0 && s.factory.rng.Float32() < 0.5 {
			group = groups[s.factory.rng.Intn(len(groups))]
			if owner, ok := byID[group.OwnerID]; ok {
				host = owner
			}
		}

		event, err := s.factory.CreateEvent(host, group)
		if err != nil {
			return nil, err
		}

		for _, user := range s.sample(users, host.ID, len(users)/4) {
			status := s.participantStatus(event.IsPrivate)
			var inviter *models.User
			if status == models.EventParticipantInvited {
				inviter = host
			}
			if _, err := s.factory.AddParticipant(event, user, status, inviter); err != nil {
				return nil, err
			}
		}

		if !s.opts.DryRun {
			if event.ParticipantCount, err = s.store.Events.RecountParticipants(ctx, event.ID); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *Seeder) participantStatus(private bool) models.EventParticipantStatus {
	r := s.factory.rng.Float32()
	switch {
	case private && r < 0.2:
		return models.EventParticipantRequested
	case r < 0.35:
		return models.EventParticipantInvited
	case r < 0.6:
		return models.EventParticipantInterested
	default:
		return models.EventParticipantGoing
	}
}

// SeedPosts spreads count text posts across users.
func (s *Seeder) SeedPosts(users []*models.User, count int) (int, error) {
	if len(users) == 0 || count <= 0 {
		return 0, nil
	}
	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		posts = append(posts, s.factory.BuildPost(users[s.factory.rng.Intn(len(users))]))
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return 0, err
	}
	return len(posts), nil
}

// sample returns up to n distinct users other than excludeID.
func (s *Seeder) sample(users []*models.User, excludeID uint, n int) []*models.User {
	out := make([]*models.User, 0, n)
	for _, idx := range s.factory.rng.Perm(len(users)) {
		if len(out) >= n {
			break
		}
		if users[idx].ID == excludeID {
			continue
		}
		out = append(out, users[idx])
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
