package repository

import (
	"fmt"
	"sort"
	"strings"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationshipSource is one kind of row that links a viewer to a target.
// The source table is aliased as rel, so Where must reference rel.<column>.
type RelationshipSource struct {
	Table     string
	TargetCol string
	UserCol   string
	Where     string
	Args      []interface{}
	Rank      int
}

// RelationshipSpec describes how to derive a viewer's rank against each row of Target.
type RelationshipSpec struct {
	Target  string
	Sources []RelationshipSource
}

// RelationshipExpr renders the sources of a RelationshipSpec as
//
//	CASE WHEN EXISTS (...) THEN <rank> ... ELSE 0 END
//
// with the highest rank tested first, so the result is the best link the viewer has.
func RelationshipExpr(spec RelationshipSpec, viewerID uint) clause.Expr {
	sources := append([]RelationshipSource(nil), spec.Sources...)
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Rank > sources[j].Rank })

	var b strings.Builder
	args := make([]interface{}, 0, len(sources)*2)

	b.WriteString("CASE")
	for _, src := range sources {
		fmt.Fprintf(&b, " WHEN EXISTS (SELECT 1 FROM %s rel WHERE rel.%s = %s AND rel.%s = ?",
			src.Table, src.TargetCol, spec.Target, src.UserCol)
		args = append(args, viewerID)
		if src.Where != "" {
			b.WriteString(" AND ")
			b.WriteString(src.Where)
			args = append(args, src.Args...)
		}
		fmt.Fprintf(&b, ") THEN %d", src.Rank)
	}
	b.WriteString(" ELSE 0 END")

	return gorm.Expr(b.String(), args...)
}

func pendingInviteSource(instanceType models.InstanceType) RelationshipSource {
	return RelationshipSource{
		Table:     "invites",
		TargetCol: "instance_id",
		UserCol:   "invite_to_id",
		Where:     "rel.instance_type = ? AND rel.status = ?",
		Args:      []interface{}{instanceType, models.InviteStatusPending},
		Rank:      models.RankInvited,
	}
}

func statusSource(table, targetCol string, rank int, statuses ...string) RelationshipSource {
	return RelationshipSource{
		Table:     table,
		TargetCol: targetCol,
		UserCol:   "user_id",
		Where:     "rel.status IN ?",
		Args:      []interface{}{statuses},
		Rank:      rank,
	}
}

// GroupRelationshipSpec derives requested/invited/joined for groups.
var GroupRelationshipSpec = RelationshipSpec{
	Target: "groups.id",
	Sources: []RelationshipSource{
		statusSource("group_members", "group_id", models.RankMember, string(models.GroupMemberJoined)),
		statusSource("group_members", "group_id", models.RankInvited, string(models.GroupMemberInvited)),
		pendingInviteSource(models.InstanceTypeGroup),
		statusSource("group_members", "group_id", models.RankRequested, string(models.GroupMemberRequested)),
	},
}

// EventRelationshipSpec derives requested/invited/interested/going for events.
var EventRelationshipSpec = RelationshipSpec{
	Target: "events.id",
	Sources: []RelationshipSource{
		statusSource("event_participants", "event_id", models.RankMember, string(models.EventParticipantGoing)),
		statusSource("event_participants", "event_id", models.RankInterested, string(models.EventParticipantInterested)),
		statusSource("event_participants", "event_id", models.RankInvited, string(models.EventParticipantInvited)),
		pendingInviteSource(models.InstanceTypeEvent),
		statusSource("event_participants", "event_id", models.RankRequested, string(models.EventParticipantRequested)),
	},
}

// FriendRelationshipSpec derives pending_sent/pending_received/connected for users.
var FriendRelationshipSpec = RelationshipSpec{
	Target: "users.id",
	Sources: []RelationshipSource{
		{
			Table: "friendships", TargetCol: "addressee_id", UserCol: "requester_id",
			Where: "rel.status = ?", Args: []interface{}{models.FriendshipStatusConnected},
			Rank: models.FriendRankConnected,
		},
		{
			Table: "friendships", TargetCol: "requester_id", UserCol: "addressee_id",
			Where: "rel.status = ?", Args: []interface{}{models.FriendshipStatusConnected},
			Rank: models.FriendRankConnected,
		},
		{
			Table: "friendships", TargetCol: "requester_id", UserCol: "addressee_id",
			Where: "rel.status = ?", Args: []interface{}{models.FriendshipStatusPending},
			Rank: models.FriendRankPendingReceived,
		},
		{
			Table: "friendships", TargetCol: "addressee_id", UserCol: "requester_id",
			Where: "rel.status = ?", Args: []interface{}{models.FriendshipStatusPending},
			Rank: models.FriendRankPendingSent,
		},
	},
}
