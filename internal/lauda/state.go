package lauda

// State mirrors the coarse device states the original control surface knows.
type State int32

const (
	StateInit State = iota
	StateOn
	StateRunning
	StateFault
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOn:
		return "ON"
	case StateRunning:
		return "RUNNING"
	case StateFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}
