package scoring

import "time"

// Point awards. A root tag always earns the new-chain award. A subtag earns
// the on-time award when posted the same calendar day as its root, the base
// award otherwise.
const (
	NewChainAward = 10
	OnTimeAward   = 5
	BaseAward     = 2
)

// Score is a tag's computed point value and flags
type Score struct {
	Points       int
	NewTag       bool
	PostedOnTime bool
	WonTag       bool
}

// RootTag scores a newly created root tag. Root tags always count as on time;
// they open a chain rather than win one.
func RootTag() Score {
	return Score{
		Points:       NewChainAward,
		NewTag:       true,
		PostedOnTime: true,
		WonTag:       false,
	}
}

// Subtag scores a reply posted at postedAt against its root tag's posted time.
// Day comparison is date-only in loc. chainHadReplies reports whether the
// subchain already contained at least one reply when this tag was scored; a
// reply that displaces an earlier one takes the provisional win, the opening
// reply of a chain does not. Earlier tags' flags are never revisited.
func Subtag(postedAt, rootPostedAt time.Time, chainHadReplies bool, loc *time.Location) Score {
	if loc == nil {
		loc = time.UTC
	}

	s := Score{
		NewTag: false,
		WonTag: chainHadReplies,
	}

	if sameDay(postedAt, rootPostedAt, loc) {
		s.Points = OnTimeAward
		s.PostedOnTime = true
	} else {
		s.Points = BaseAward
		s.PostedOnTime = false
	}

	return s
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
