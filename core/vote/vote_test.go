package vote

import (
	"errors"
	"testing"

	"github.com/anonroom/anonroom-go/core"
)

func TestResolve_FirstVote(t *testing.T) {
	out, err := Resolve("", core.VoteLike)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Removed || out.NewVote != core.VoteLike {
		t.Errorf("outcome = %+v, want new like vote", out)
	}
	if out.LikesDelta != 1 || out.DislikesDelta != 0 {
		t.Errorf("deltas = %d/%d, want +1/0", out.LikesDelta, out.DislikesDelta)
	}
}

func TestResolve_ToggleOff(t *testing.T) {
	out, err := Resolve(core.VoteLike, core.VoteLike)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !out.Removed || out.NewVote != "" {
		t.Errorf("outcome = %+v, want removed", out)
	}
	if out.LikesDelta != -1 || out.DislikesDelta != 0 {
		t.Errorf("deltas = %d/%d, want -1/0", out.LikesDelta, out.DislikesDelta)
	}
}

func TestResolve_SwitchDirection(t *testing.T) {
	out, err := Resolve(core.VoteLike, core.VoteDislike)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if out.Removed || out.NewVote != core.VoteDislike {
		t.Errorf("outcome = %+v, want switch to dislike", out)
	}
	if out.LikesDelta != -1 || out.DislikesDelta != 1 {
		t.Errorf("deltas = %d/%d, want -1/+1", out.LikesDelta, out.DislikesDelta)
	}
}

func TestResolve_InvalidType(t *testing.T) {
	if _, err := Resolve("", core.VoteType("meh")); !errors.Is(err, core.ErrInvalidVoteType) {
		t.Errorf("error = %v, want ErrInvalidVoteType", err)
	}
}

func TestToggleSequence_NetZero(t *testing.T) {
	// like, then like again: counters return to baseline.
	counts := core.VoteCounts{Likes: 3, Dislikes: 1}

	out, _ := Resolve("", core.VoteLike)
	Apply(&counts, out)
	if counts.Likes != 4 {
		t.Fatalf("likes after vote = %d, want 4", counts.Likes)
	}

	out, _ = Resolve(core.VoteLike, core.VoteLike)
	Apply(&counts, out)
	if counts.Likes != 3 || counts.Dislikes != 1 {
		t.Errorf("counts after toggle-off = %+v, want baseline 3/1", counts)
	}
}

func TestToggleSequence_Switch(t *testing.T) {
	counts := core.VoteCounts{Likes: 1}

	out, _ := Resolve(core.VoteLike, core.VoteDislike)
	Apply(&counts, out)
	if counts.Likes != 0 || counts.Dislikes != 1 {
		t.Errorf("counts after switch = %+v, want 0/1", counts)
	}
}

func TestApply_ClampsAtZero(t *testing.T) {
	counts := core.VoteCounts{}
	Apply(&counts, Outcome{Removed: true, LikesDelta: -1})
	if counts.Likes != 0 {
		t.Errorf("likes = %d, want clamp at 0", counts.Likes)
	}
}
