package mutation

// State is the lifecycle of one submission attempt.
type State int

// Idle -> Pending -> {Success, Error}. A new attempt starts from Success or
// Error as well.
const (
	Idle State = iota
	Pending
	Success
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a submission is outstanding.
func (s State) Busy() bool { return s == Pending }
