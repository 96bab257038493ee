package mastery

import "github.com/vytor/phonicsmastery/internal/models"

// State is the scoring lifecycle of one activity session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Session owns the live percent of one activity instance. It is not safe for
// concurrent use; callers serialize access per progress key.
type Session struct {
	percent    int
	itemCount  int
	pointValue float64
	state      State
}

// NewSession resumes an activity from a stored percent. An empty content set
// is rejected before any scoring can happen.
func NewSession(percent, itemCount int) (*Session, error) {
	pv, err := PointValue(itemCount)
	if err != nil {
		return nil, err
	}
	s := &Session{
		percent:    Clamp(percent),
		itemCount:  itemCount,
		pointValue: pv,
	}
	switch {
	case s.percent >= MaxPercent:
		s.state = StateCompleted
	case s.percent > MinPercent:
		s.state = StateInProgress
	default:
		s.state = StateNotStarted
	}
	return s, nil
}

// Apply scores one outcome. Once completed, further outcomes neither add nor
// remove credit.
func (s *Session) Apply(outcome models.Outcome) int {
	if s.state == StateCompleted {
		return s.percent
	}
	s.percent = ApplyOutcome(s.percent, s.pointValue, outcome)
	s.advance()
	return s.percent
}

// Complete records a won round.
func (s *Session) Complete() int {
	s.percent = MaxPercent
	s.state = StateCompleted
	return s.percent
}

// Reset starts practice mode over from zero. It is the only way back below a
// completed percent.
func (s *Session) Reset() int {
	s.percent = MinPercent
	s.state = StateNotStarted
	return s.percent
}

func (s *Session) advance() {
	if s.percent >= MaxPercent {
		s.state = StateCompleted
		return
	}
	s.state = StateInProgress
}

func (s *Session) Percent() int        { return s.percent }
func (s *Session) State() State        { return s.state }
func (s *Session) Completed() bool     { return s.state == StateCompleted }
func (s *Session) ItemCount() int      { return s.itemCount }
func (s *Session) PointValue() float64 { return s.pointValue }

// ResumeIndex is the item the activity should present next.
func (s *Session) ResumeIndex() int {
	return ResumeIndex(s.percent, s.itemCount)
}
