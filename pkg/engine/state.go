package engine

// State is a step of command processing. A command moves forward through
// the states in order and stops at Logged or Failed.
type State int

const (
	Received State = iota
	Parsed
	Validated
	Authorized
	Executed
	Logged
	Failed
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Parsed:
		return "parsed"
	case Validated:
		return "validated"
	case Authorized:
		return "authorized"
	case Executed:
		return "executed"
	case Logged:
		return "logged"
	case Failed:
		return "failed"
	}
	return "unknown"
}
