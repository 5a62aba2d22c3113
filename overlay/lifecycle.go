package overlay

// Lifecycle is the initialization state of a State.
type Lifecycle int32

const (
	Uninitialized Lifecycle = iota
	Initializing
	Ready
	Failed
)

func (l Lifecycle) String() string {
	switch l {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
