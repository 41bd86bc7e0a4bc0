package clock

import "time"

// Clock is the injectable time source. Promotion timing and on-time scoring
// depend on calendar-day boundaries in a configured location, so both the
// current instant and day truncation go through this interface.
type Clock interface {
	Now() time.Time
	// EndOfDay returns 00:00 of the following calendar day in the clock's
	// location, the default trigger time for promoting a tag posted at t.
	EndOfDay(t time.Time) time.Time
	// SameDay reports whether a and b fall on the same calendar day in the
	// clock's location.
	SameDay(a, b time.Time) bool
	Location() *time.Location
}

type realClock struct {
	loc *time.Location
}

// New creates a Clock anchored to the given location. A nil location means UTC.
func New(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &realClock{loc: loc}
}

func (c *realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *realClock) EndOfDay(t time.Time) time.Time {
	return EndOfDay(t, c.loc)
}

func (c *realClock) SameDay(a, b time.Time) bool {
	return SameDay(a, b, c.loc)
}

func (c *realClock) Location() *time.Location {
	return c.loc
}

// EndOfDay returns midnight of the day after t in loc
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b share a calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Fixed is a deterministic Clock for tests. Set Current to control Now.
type Fixed struct {
	Current time.Time
	Loc     *time.Location
}

// NewFixed creates a fixed clock at t in loc (UTC when nil)
func NewFixed(t time.Time, loc *time.Location) *Fixed {
	if loc == nil {
		loc = time.UTC
	}
	return &Fixed{Current: t, Loc: loc}
}

func (f *Fixed) Now() time.Time {
	return f.Current.In(f.Loc)
}

func (f *Fixed) EndOfDay(t time.Time) time.Time {
	return EndOfDay(t, f.Loc)
}

func (f *Fixed) SameDay(a, b time.Time) bool {
	return SameDay(a, b, f.Loc)
}

func (f *Fixed) Location() *time.Location {
	return f.Loc
}

// Advance moves the fixed clock forward by d
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
