// Package vote implements the one-vote-per-user toggle semantics.
//
// Resolve computes what a vote action means given the user's current
// vote: adding a vote, switching direction, or removing it. The
// resulting counter deltas are applied atomically by the remote store
// (single-statement adjustment) or in memory by the local fallback.
package vote

import (
	"github.com/anonroom/anonroom-go/core"
)

// Outcome describes the effect of a vote action.
type Outcome struct {
	// Removed is true when the action toggled an existing vote off.
	Removed bool

	// NewVote is the vote now in effect, empty when Removed.
	NewVote core.VoteType

	// LikesDelta and DislikesDelta are the counter adjustments.
	LikesDelta    int
	DislikesDelta int
}

// Resolve computes the outcome of requesting a vote given the user's
// current vote on the message (empty means no vote).
func Resolve(current, requested core.VoteType) (Outcome, error) {
	if !requested.Valid() {
		return Outcome{}, core.ErrInvalidVoteType
	}

	switch {
	case current == requested:
		// Same direction again: toggle off.
		return Outcome{Removed: true, LikesDelta: delta(requested, -1).Likes, DislikesDelta: delta(requested, -1).Dislikes}, nil
	case current != "":
		// Switch direction: undo the old counter, bump the new one.
		out := Outcome{NewVote: requested}
		old := delta(current, -1)
		add := delta(requested, 1)
		out.LikesDelta = old.Likes + add.Likes
		out.DislikesDelta = old.Dislikes + add.Dislikes
		return out, nil
	default:
		add := delta(requested, 1)
		return Outcome{NewVote: requested, LikesDelta: add.Likes, DislikesDelta: add.Dislikes}, nil
	}
}

// Apply applies an outcome's deltas to a message's counters, clamping
// at zero so a replayed removal cannot drive a counter negative.
func Apply(c *core.VoteCounts, o Outcome) {
	c.Likes += o.LikesDelta
	c.Dislikes += o.DislikesDelta
	if c.Likes < 0 {
		c.Likes = 0
	}
	if c.Dislikes < 0 {
		c.Dislikes = 0
	}
}

func delta(t core.VoteType, n int) core.VoteCounts {
	if t == core.VoteLike {
		return core.VoteCounts{Likes: n}
	}
	return core.VoteCounts{Dislikes: n}
}
