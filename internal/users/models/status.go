package models

// Status is the account lifecycle state.
type Status string

const (
	StatusPendingVerification Status = "PendingVerification"
	StatusActive              Status = "Active"
	StatusDeactivated         Status = "Deactivated"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingVerification, StatusActive, StatusDeactivated:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
//
//	PendingVerification -> Active | Deactivated
//	Active              -> Active | Deactivated
//	Deactivated         -> Active | Deactivated
func (s Status) CanTransitionTo(next Status) bool {
	switch next {
	case StatusActive, StatusDeactivated:
		return s.IsValid()
	default:
		return false
	}
}
