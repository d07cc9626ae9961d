// Package workflow holds the thesis supervision rules: the lifecycle states, who may move a
// thesis forward and how the current state is presented to each actor.
//
// Everything in here is pure. Callers build a Snapshot from their own records, pick the
// actor's Role and ask a Planner for a Decision.
package workflow

import "errors"

// Status is a thesis lifecycle state.
type Status string

// Lifecycle states, in order. No state may be skipped and none can be left backwards.
const (
	InDiscussion Status = "IN_DISCUSSION"
	Registered   Status = "REGISTERED"
	Submitted    Status = "SUBMITTED"
	Defended     Status = "DEFENDED"
)

// ErrUnknownStatus is returned by ParseStatus for codes outside the lifecycle.
var ErrUnknownStatus = errors.New("unknown thesis status")

// Lifecycle returns the lifecycle states in order.
func Lifecycle() []Status {
	return []Status{InDiscussion, Registered, Submitted, Defended}
}

// ParseStatus validates a raw status code. Unknown codes are rejected, never coerced.
func ParseStatus(code string) (Status, error) {
	s := Status(code)
	if !s.IsValid() {
		return "", ErrUnknownStatus
	}
	return s, nil
}

func (s Status) IsValid() bool { return s.Index() >= 0 }

// Index is the position of s in the lifecycle, -1 if s is unknown.
func (s Status) Index() int {
	for i, st := range Lifecycle() {
		if st == s {
			return i
		}
	}
	return -1
}

// Successor returns the state following s; false for terminal or unknown states.
func (s Status) Successor() (Status, bool) {
	lc := Lifecycle()
	idx := s.Index()
	if idx < 0 || idx+1 >= len(lc) {
		return "", false
	}
	return lc[idx+1], true
}

func (s Status) IsTerminal() bool { return s == Defended }

func (s Status) String() string { return string(s) }

// Role is the part an actor plays towards one thesis.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTutor   Role = "TUTOR"
	RoleOther   Role = "OTHER"
)

// ParseRole maps anything that is not a student or a tutor to RoleOther.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleStudent, RoleTutor:
		return r
	default:
		return RoleOther
	}
}

// normalize treats zero and unknown roles as RoleOther.
func (r Role) normalize() Role { return ParseRole(string(r)) }

// Snapshot is the read-only view of a thesis the rules are evaluated against.
type Snapshot struct {
	Status                       Status
	TutorID                      string // empty when no tutor is bound
	HasSupervisionRequest        bool
	IsSupervisionRequestAccepted bool
}

func (s Snapshot) HasTutor() bool { return s.TutorID != "" }
