package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    Status
		wantErr error
	}{
		{name: "in discussion", code: "IN_DISCUSSION", want: InDiscussion},
		{name: "registered", code: "REGISTERED", want: Registered},
		{name: "submitted", code: "SUBMITTED", want: Submitted},
		{name: "defended", code: "DEFENDED", want: Defended},
		{name: "lowercase", code: "submitted", wantErr: ErrUnknownStatus},
		{name: "empty", code: "", wantErr: ErrUnknownStatus},
		{name: "unknown", code: "ARCHIVED", wantErr: ErrUnknownStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.code)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_Successor(t *testing.T) {
	tests := []struct {
		status Status
		want   Status
		wantOk bool
	}{
		{status: InDiscussion, want: Registered, wantOk: true},
		{status: Registered, want: Submitted, wantOk: true},
		{status: Submitted, want: Defended, wantOk: true},
		{status: Defended},
		{status: "ARCHIVED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, ok := tt.status.Successor()
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleStudent, ParseRole("STUDENT"))
	assert.Equal(t, RoleTutor, ParseRole("TUTOR"))
	assert.Equal(t, RoleOther, ParseRole("OTHER"))
	assert.Equal(t, RoleOther, ParseRole("examiner"))
	assert.Equal(t, RoleOther, ParseRole(""))
}

func TestTranslate(t *testing.T) {
	t.Run("student without tutor is always waiting", func(t *testing.T) {
		for _, s := range Lifecycle() {
			assert.Equal(t, LabelWaitingForTutor, Translate(Snapshot{Status: s}, RoleStudent), s)
		}
	})

	tests := []struct {
		name string
		snap Snapshot
		role Role
		want string
	}{
		{name: "student with tutor", snap: Snapshot{Status: InDiscussion, TutorID: "t1"}, role: RoleStudent, want: "in discussion"},
		{name: "tutor without tutor id", snap: Snapshot{Status: Registered}, role: RoleTutor, want: "registered"},
		{name: "other", snap: Snapshot{Status: Submitted}, role: RoleOther, want: "submitted"},
		{name: "unknown role", snap: Snapshot{Status: Defended}, role: "DEAN", want: "defended"},
		{name: "unknown status", snap: Snapshot{Status: "ARCHIVED", TutorID: "t1"}, role: RoleStudent, want: "ARCHIVED"},
		{name: "unknown status for other", snap: Snapshot{Status: "ARCHIVED"}, role: RoleOther, want: "ARCHIVED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.snap, tt.role))
		})
	}
}

func TestCanAdvance(t *testing.T) {
	t.Run("tutor advances only submitted theses", func(t *testing.T) {
		for _, s := range Lifecycle() {
			for _, tutorID := range []string{"", "t1"} {
				snap := Snapshot{Status: s, TutorID: tutorID, HasSupervisionRequest: true, IsSupervisionRequestAccepted: true}
				assert.Equal(t, s == Submitted, CanAdvance(snap, RoleTutor), s)
			}
		}
	})

	t.Run("other never advances", func(t *testing.T) {
		for _, s := range Lifecycle() {
			for _, role := range []Role{RoleOther, "", "ADMIN"} {
				assert.False(t, CanAdvance(Snapshot{Status: s, TutorID: "t1"}, role))
			}
		}
	})

	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{name: "in discussion without tutor", snap: Snapshot{Status: InDiscussion}},
		{name: "in discussion with tutor", snap: Snapshot{Status: InDiscussion, TutorID: "t1"}, want: true},
		{name: "registered without tutor", snap: Snapshot{Status: Registered}, want: true},
		{name: "registered with tutor", snap: Snapshot{Status: Registered, TutorID: "t1"}, want: true},
		{name: "submitted", snap: Snapshot{Status: Submitted, TutorID: "t1"}},
		{name: "defended", snap: Snapshot{Status: Defended, TutorID: "t1"}},
		{name: "unknown status", snap: Snapshot{Status: "ARCHIVED", TutorID: "t1"}},
	}
	for _, tt := range tests {
		t.Run("student: "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAdvance(tt.snap, RoleStudent))
		})
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		role   Role
		want   Status
		wantOk bool
	}{
		{name: "student from in discussion", snap: Snapshot{Status: InDiscussion, TutorID: "t1"}, role: RoleStudent, want: Registered, wantOk: true},
		{name: "student from in discussion without tutor", snap: Snapshot{Status: InDiscussion}, role: RoleStudent},
		{name: "student from registered", snap: Snapshot{Status: Registered, TutorID: "t1"}, role: RoleStudent, want: Submitted, wantOk: true},
		{name: "student from submitted", snap: Snapshot{Status: Submitted, TutorID: "t1"}, role: RoleStudent},
		{name: "tutor from submitted", snap: Snapshot{Status: Submitted, TutorID: "t1"}, role: RoleTutor, want: Defended, wantOk: true},
		{name: "tutor from registered", snap: Snapshot{Status: Registered, TutorID: "t1"}, role: RoleTutor},
		{name: "tutor from defended", snap: Snapshot{Status: Defended, TutorID: "t1"}, role: RoleTutor},
		{name: "other from registered", snap: Snapshot{Status: Registered, TutorID: "t1"}, role: RoleOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextState(tt.snap, tt.role)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

var (
	confirmed   = ConfirmerFunc(func(Snapshot) bool { return true })
	unconfirmed = ConfirmerFunc(func(Snapshot) bool { return false })
)

func options(states ...Status) []Option {
	opts := make([]Option, 0, len(states))
	for _, s := range states {
		opts = append(opts, Option{Code: s, Label: s.Label()})
	}
	return opts
}

func accepted(s Status) Snapshot {
	return Snapshot{Status: s, TutorID: "t1", HasSupervisionRequest: true, IsSupervisionRequestAccepted: true}
}

func TestPlanner_Plan(t *testing.T) {
	tests := []struct {
		name      string
		snap      Snapshot
		role      Role
		confirmer RegistrationConfirmer
		want      Decision
	}{
		// Scenario A
		{
			name: "student without request",
			snap: Snapshot{Status: InDiscussion},
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "created"},
		},
		{
			name: "student with pending request",
			snap: Snapshot{Status: InDiscussion, HasSupervisionRequest: true},
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "in coordination"},
		},
		{
			name: "student with accepted request but no tutor",
			snap: Snapshot{Status: InDiscussion, HasSupervisionRequest: true, IsSupervisionRequestAccepted: true},
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "in coordination"},
		},
		{
			name: "student with tutor but pending request",
			snap: Snapshot{Status: InDiscussion, TutorID: "t1", HasSupervisionRequest: true},
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "in coordination"},
		},
		{
			name: "student in discussion",
			snap: accepted(InDiscussion),
			role: RoleStudent,
			want: Decision{DisplayMode: Selectable, AvailableStates: options(InDiscussion, Registered), SelectionEnabled: true},
		},
		// Scenario B
		{
			name:      "student registered and confirmed",
			snap:      accepted(Registered),
			role:      RoleStudent,
			confirmer: confirmed,
			want:      Decision{DisplayMode: Selectable, AvailableStates: options(Registered, Submitted), SelectionEnabled: true},
		},
		// Scenario C
		{
			name:      "student registered but unconfirmed",
			snap:      accepted(Registered),
			role:      RoleStudent,
			confirmer: unconfirmed,
			want:      Decision{DisplayMode: Selectable, AvailableStates: options(InDiscussion, Registered), SelectionEnabled: true},
		},
		{
			name: "student registered without confirmer",
			snap: accepted(Registered),
			role: RoleStudent,
			want: Decision{DisplayMode: Selectable, AvailableStates: options(InDiscussion, Registered), SelectionEnabled: true},
		},
		{
			name:      "student submitted",
			snap:      accepted(Submitted),
			role:      RoleStudent,
			confirmer: confirmed,
			want:      Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "submitted"},
		},
		{
			name: "student defended",
			snap: accepted(Defended),
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "defended"},
		},
		{
			name: "student unknown status",
			snap: accepted("ARCHIVED"),
			role: RoleStudent,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "ARCHIVED"},
		},
		{
			name: "tutor registered and unconfirmed is not downgraded",
			snap: accepted(Registered),
			role: RoleTutor,
			want: Decision{DisplayMode: Selectable, AvailableStates: options(Lifecycle()...)},
		},
		{
			name: "tutor submitted",
			snap: accepted(Submitted),
			role: RoleTutor,
			want: Decision{DisplayMode: Selectable, AvailableStates: options(Lifecycle()...), SelectionEnabled: true},
		},
		// Scenario D
		{
			name: "tutor defended",
			snap: accepted(Defended),
			role: RoleTutor,
			want: Decision{DisplayMode: Selectable, AvailableStates: options(Lifecycle()...)},
		},
		// Scenario E
		{
			name: "unknown role",
			snap: accepted(Submitted),
			role: "DEAN",
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "submitted"},
		},
		{
			name: "other without tutor",
			snap: Snapshot{Status: InDiscussion},
			role: RoleOther,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "in discussion"},
		},
		{
			name: "other unknown status",
			snap: Snapshot{Status: "ARCHIVED"},
			role: RoleOther,
			want: Decision{DisplayMode: ReadOnly, AvailableStates: []Option{}, ReadOnlyLabel: "ARCHIVED"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPlanner(tt.confirmer).Plan(tt.snap, tt.role))
		})
	}
}

func TestPlanner_Plan_studentWithoutRequest(t *testing.T) {
	statuses := append(Lifecycle(), "ARCHIVED")
	for _, s := range statuses {
		for _, tutorID := range []string{"", "t1"} {
			d := Plan(Snapshot{Status: s, TutorID: tutorID}, RoleStudent, confirmed)
			assert.True(t, d.IsReadOnly())
			assert.Equal(t, LabelCreated, d.ReadOnlyLabel)
			assert.Empty(t, d.AvailableStates)
		}
	}
}

func TestPlanner_Plan_tutorLadder(t *testing.T) {
	want := []Status{InDiscussion, Registered, Submitted, Defended}
	for _, s := range Lifecycle() {
		d := Plan(Snapshot{Status: s}, RoleTutor, nil)
		codes := make([]Status, 0, len(d.AvailableStates))
		for _, opt := range d.AvailableStates {
			codes = append(codes, opt.Code)
		}
		assert.Equal(t, want, codes)
		assert.Equal(t, s == Submitted, d.SelectionEnabled, s)
		assert.Empty(t, d.ReadOnlyLabel)
	}
}

func TestPlanner_Plan_idempotent(t *testing.T) {
	p := NewPlanner(confirmed)
	snaps := []Snapshot{
		{Status: InDiscussion},
		accepted(InDiscussion),
		accepted(Registered),
		accepted(Submitted),
		accepted("ARCHIVED"),
	}
	for _, snap := range snaps {
		for _, role := range []Role{RoleStudent, RoleTutor, RoleOther} {
			assert.Equal(t, p.Plan(snap, role), p.Plan(snap, role))
		}
	}
}

func TestPlanner_confirmerSeesSnapshot(t *testing.T) {
	var seen Snapshot
	c := ConfirmerFunc(func(snap Snapshot) bool {
		seen = snap
		return true
	})
	snap := accepted(Registered)
	NewPlanner(c).Plan(snap, RoleStudent)
	assert.Equal(t, snap, seen)
}

func TestDecision_Allows(t *testing.T) {
	student := Plan(accepted(Registered), RoleStudent, confirmed)
	assert.True(t, student.Allows(Submitted))
	assert.True(t, student.Allows(Registered))
	assert.False(t, student.Allows(Defended))

	tutor := Plan(accepted(Registered), RoleTutor, nil)
	assert.True(t, tutor.Offers(Defended))
	assert.False(t, tutor.Allows(Defended))

	other := Plan(accepted(Submitted), RoleOther, nil)
	assert.False(t, other.Allows(Defended))
}
