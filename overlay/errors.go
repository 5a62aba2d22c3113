package overlay

import (
	"errors"
	"fmt"
)

// ErrNotReady is returned when a frame is requested before the State is
// Ready.
var ErrNotReady = errors.New("overlay is not ready")

// Op identifies the rendering step that failed.
type Op int

const (
	// ContextInitFailed means the renderer or the canvas could not be
	// created. This includes a graphics procedure that resolved to a null
	// address.
	ContextInitFailed Op = iota + 1
	BuildFailed
	DrawFailed
)

func (op Op) String() string {
	switch op {
	case ContextInitFailed:
		return "context init failed"
	case BuildFailed:
		return "build failed"
	case DrawFailed:
		return "draw failed"
	default:
		return "unknown"
	}
}

// RenderError reports a failure in the overlay render path.
type RenderError struct {
	Op  Op
	Err error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return "overlay: " + e.Op.String()
	}
	return fmt.Sprintf("overlay: %v: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func renderError(op Op, err error) error {
	var rerr *RenderError
	if errors.As(err, &rerr) && rerr.Op == op {
		return err
	}
	return &RenderError{Op: op, Err: err}
}
