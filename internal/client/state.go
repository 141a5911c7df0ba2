package client

// State is the query lifecycle: Idle → Loading → Success | Error.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// CanSubmit reports whether a new request may start from s.
func (s State) CanSubmit() bool {
	return s != StateLoading
}
