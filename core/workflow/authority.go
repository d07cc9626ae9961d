package workflow

// CanAdvance reports whether role may move the thesis to its next state.
//
//	STUDENT: IN_DISCUSSION (once a tutor is bound), REGISTERED
//	TUTOR:   SUBMITTED
//
// Nobody advances a DEFENDED thesis.
func CanAdvance(snap Snapshot, role Role) bool {
	switch role.normalize() {
	case RoleStudent:
		switch snap.Status {
		case InDiscussion:
			return snap.HasTutor()
		case Registered:
			return true
		}
	case RoleTutor:
		return snap.Status == Submitted
	}
	return false
}

// NextState returns the state role may move the thesis to, false when it may not move it.
func NextState(snap Snapshot, role Role) (Status, bool) {
	if !CanAdvance(snap, role) {
		return "", false
	}
	return snap.Status.Successor()
}
