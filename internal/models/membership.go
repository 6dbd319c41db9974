package models

// Relationship is the derived link between the current user and a group or event.
type Relationship string

const (
	RelationshipNone       Relationship = "none"
	RelationshipRequested  Relationship = "requested"
	RelationshipInvited    Relationship = "invited"
	RelationshipInterested Relationship = "interested"
	RelationshipJoined     Relationship = "joined"
	RelationshipGoing      Relationship = "going"
)

// Relationship ranks. A higher rank wins when a user has several rows for one target.
// Joined and going share the top rank: both mean full participation.
const (
	RankNone       = 0
	RankRequested  = 1
	RankInvited    = 2
	RankInterested = 3
	RankMember     = 4
)

// RelationshipRank returns the canonical rank of r.
func RelationshipRank(r Relationship) int {
	switch r {
	case RelationshipRequested:
		return RankRequested
	case RelationshipInvited:
		return RankInvited
	case RelationshipInterested:
		return RankInterested
	case RelationshipJoined, RelationshipGoing:
		return RankMember
	default:
		return RankNone
	}
}

// GroupRelationship maps a derived rank back to the group vocabulary.
func GroupRelationship(rank int) Relationship {
	switch rank {
	case RankRequested:
		return RelationshipRequested
	case RankInvited:
		return RelationshipInvited
	case RankMember:
		return RelationshipJoined
	default:
		return RelationshipNone
	}
}

// EventRelationship maps a derived rank back to the event vocabulary.
func EventRelationship(rank int) Relationship {
	switch rank {
	case RankRequested:
		return RelationshipRequested
	case RankInvited:
		return RelationshipInvited
	case RankInterested:
		return RelationshipInterested
	case RankMember:
		return RelationshipGoing
	default:
		return RelationshipNone
	}
}
