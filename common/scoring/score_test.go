package scoring

import (
	"testing"
	"time"
)

func TestRootTagScore(t *testing.T) {
	s := RootTag()

	if s.Points != NewChainAward {
		t.Errorf("expected %d points for root tag, got %d", NewChainAward, s.Points)
	}
	if !s.NewTag {
		t.Error("root tag must be marked as new")
	}
	if !s.PostedOnTime {
		t.Error("root tag must always count as on time")
	}
	if s.WonTag {
		t.Error("root tag must not win its own chain")
	}
}

func TestSubtagSameDayEarnsOnTimeAward(t *testing.T) {
	root := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reply := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)

	s := Subtag(reply, root, false, time.UTC)

	if s.Points != OnTimeAward {
		t.Errorf("expected %d points, got %d", OnTimeAward, s.Points)
	}
	if !s.PostedOnTime {
		t.Error("same-day reply must be on time")
	}
	if s.NewTag {
		t.Error("subtag must not be marked as new")
	}
}

func TestSubtagNextDayEarnsBaseAward(t *testing.T) {
	root := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	reply := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

	s := Subtag(reply, root, true, time.UTC)

	if s.Points != BaseAward {
		t.Errorf("expected %d points, got %d", BaseAward, s.Points)
	}
	if s.PostedOnTime {
		t.Error("next-day reply must not be on time")
	}
}

func TestSubtagWonFlagFollowsChainState(t *testing.T) {
	root := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first := Subtag(root.Add(4*time.Hour), root, false, time.UTC)
	if first.WonTag {
		t.Error("opening reply of a chain must not take the win")
	}

	displacing := Subtag(root.Add(23*time.Hour), root, true, time.UTC)
	if !displacing.WonTag {
		t.Error("reply displacing an earlier one must take the provisional win")
	}
}

func TestSubtagDayBoundaryRespectsLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// 23:30 local on Jan 1 vs 00:30 UTC on Jan 2: same UTC day boundary
	// differs from the local one.
	root := time.Date(2024, 1, 1, 20, 0, 0, 0, loc)
	reply := time.Date(2024, 1, 2, 4, 30, 0, 0, time.UTC) // Jan 1 23:30 local

	s := Subtag(reply, root, false, loc)
	if !s.PostedOnTime {
		t.Error("reply before local midnight must be on time")
	}

	late := time.Date(2024, 1, 2, 5, 30, 0, 0, time.UTC) // Jan 2 00:30 local
	s = Subtag(late, root, false, loc)
	if s.PostedOnTime {
		t.Error("reply after local midnight must not be on time")
	}
}
