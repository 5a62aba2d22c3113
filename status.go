package framehook

// Status is the lifecycle state of a Hook.
//
//	Uninstalled -> Installed -> Enabled <-> Disabled -> Uninstalled
//
// Installed and Disabled hooks may also be uninstalled directly, and an
// Enabled hook is disabled on the way to Uninstalled.
type Status int32

const (
	Uninstalled Status = iota
	Installed
	Enabled
	Disabled
)

func (s Status) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installed:
		return "installed"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func allowedTransition(cur, next Status) bool {
	switch cur {
	case Installed:
		return next == Enabled || next == Uninstalled
	case Enabled:
		return next == Disabled || next == Uninstalled
	case Disabled:
		return next == Enabled || next == Uninstalled
	default:
		return false
	}
}
