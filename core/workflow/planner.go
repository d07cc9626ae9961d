package workflow

// DisplayMode tells a client how to present the status.
type DisplayMode string

const (
	ReadOnly   DisplayMode = "READ_ONLY"
	Selectable DisplayMode = "SELECTABLE"
)

// Option is one selectable state.
type Option struct {
	Code  Status `json:"code"`
	Label string `json:"label"`
}

// Decision is how a thesis status is presented to one actor.
// AvailableStates is empty and ReadOnlyLabel set when DisplayMode is ReadOnly;
// SelectionEnabled only means something for Selectable decisions.
type Decision struct {
	DisplayMode      DisplayMode `json:"display_mode"`
	AvailableStates  []Option    `json:"available_states"`
	ReadOnlyLabel    string      `json:"read_only_label,omitempty"`
	SelectionEnabled bool        `json:"selection_enabled"`
}

func (d Decision) IsReadOnly() bool { return d.DisplayMode == ReadOnly }

// Offers reports whether s is one of the selectable states.
func (d Decision) Offers(s Status) bool {
	for _, opt := range d.AvailableStates {
		if opt.Code == s {
			return true
		}
	}
	return false
}

// Allows reports whether an actor may pick s from this decision.
func (d Decision) Allows(s Status) bool {
	return d.DisplayMode == Selectable && d.SelectionEnabled && d.Offers(s)
}

// RegistrationConfirmer tells whether the registration of a REGISTERED thesis has been confirmed.
type RegistrationConfirmer interface {
	RegistrationConfirmed(snap Snapshot) bool
}

// ConfirmerFunc adapts a function to RegistrationConfirmer.
type ConfirmerFunc func(snap Snapshot) bool

func (f ConfirmerFunc) RegistrationConfirmed(snap Snapshot) bool { return f(snap) }

// Planner computes Decisions. The zero value treats every registration as unconfirmed.
// A Planner holds no mutable state and may be shared.
type Planner struct {
	confirmer RegistrationConfirmer
}

func NewPlanner(c RegistrationConfirmer) Planner {
	return Planner{confirmer: c}
}

// Plan is a shortcut for NewPlanner(c).Plan(snap, role).
func Plan(snap Snapshot, role Role, c RegistrationConfirmer) Decision {
	return NewPlanner(c).Plan(snap, role)
}

// Plan returns the Decision for role looking at snap. It never fails: unknown roles are
// treated as RoleOther and unknown statuses end up read-only with their raw code.
func (p Planner) Plan(snap Snapshot, role Role) Decision {
	switch role.normalize() {
	case RoleStudent:
		return p.planStudent(snap)
	case RoleTutor:
		return planTutor(snap)
	default:
		return readOnly(Translate(snap, RoleOther))
	}
}

func (p Planner) registrationConfirmed(snap Snapshot) bool {
	if p.confirmer == nil {
		return false
	}
	return p.confirmer.RegistrationConfirmed(snap)
}

func (p Planner) planStudent(snap Snapshot) Decision {
	if !snap.HasSupervisionRequest {
		return readOnly(LabelCreated)
	}
	if !snap.IsSupervisionRequestAccepted || !snap.HasTutor() {
		return readOnly(LabelInCoordination)
	}

	effective := snap.Status
	if effective == Registered && !p.registrationConfirmed(snap) {
		effective = InDiscussion
	}

	switch effective {
	case InDiscussion:
		return selectable(true, InDiscussion, Registered)
	case Registered:
		return selectable(true, Registered, Submitted)
	default:
		return readOnly(Translate(snap, RoleStudent))
	}
}

func planTutor(snap Snapshot) Decision {
	return selectable(snap.Status == Submitted, Lifecycle()...)
}

func readOnly(label string) Decision {
	return Decision{
		DisplayMode:     ReadOnly,
		AvailableStates: []Option{},
		ReadOnlyLabel:   label,
	}
}

func selectable(enabled bool, states ...Status) Decision {
	opts := make([]Option, 0, len(states))
	for _, s := range states {
		opts = append(opts, Option{Code: s, Label: s.Label()})
	}
	return Decision{
		DisplayMode:      Selectable,
		AvailableStates:  opts,
		SelectionEnabled: enabled,
	}
}
