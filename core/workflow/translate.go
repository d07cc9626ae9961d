package workflow

// Labels shown to users.
const (
	LabelWaitingForTutor = "waiting for tutor acceptance"
	LabelCreated         = "created"
	LabelInCoordination  = "in coordination"
)

var statusLabels = map[Status]string{
	InDiscussion: "in discussion",
	Registered:   "registered",
	Submitted:    "submitted",
	Defended:     "defended",
}

// Label is the role-agnostic text for s. Unknown codes are echoed back unchanged.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Translate returns the text an actor sees for the snapshot's status.
// A student whose thesis has no tutor yet always sees it as waiting for the tutor.
func Translate(snap Snapshot, role Role) string {
	if role.normalize() == RoleStudent && !snap.HasTutor() {
		return LabelWaitingForTutor
	}
	return snap.Status.Label()
}
