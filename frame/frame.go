// Package frame runs the overlay from inside the host's per-frame present
// call.
package frame

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pboyd/framehook/overlay"
	"go.uber.org/zap"
)

// PresentFunc is the intercepted entry point: one graphics surface handle
// in, a BOOL-sized result out.
type PresentFunc = func(surface uintptr) uintptr

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock replaces time.Now for frame timing.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator draws the overlay before each intercepted present and then
// forwards the call to the original.
type Orchestrator struct {
	state *overlay.State
	log   *zap.Logger
	now   func() time.Time

	mu   sync.Mutex
	last time.Time

	errLogged atomic.Bool
	frames    atomic.Uint64
}

// New returns an Orchestrator driving state. A nil state only forwards.
func New(state *overlay.State, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state: state,
		log:   zap.NewNop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Intercept is the body of the replacement. It draws the overlay if it is
// ready, then calls original exactly once and returns its result. Nothing
// that goes wrong in the overlay reaches the host.
func (o *Orchestrator) Intercept(surface uintptr, original PresentFunc) uintptr {
	o.frames.Add(1)
	o.drawOverlay()
	return original(surface)
}

// Replacement returns a PresentFunc to install as the hook's replacement.
// original is called on every frame to get the function to forward to,
// normally the hook's Original method, so the hook may be created after
// the replacement.
func (o *Orchestrator) Replacement(original func() PresentFunc) PresentFunc {
	return func(surface uintptr) uintptr {
		return o.Intercept(surface, original())
	}
}

// Frames returns the number of intercepted calls.
func (o *Orchestrator) Frames() uint64 {
	return o.frames.Load()
}

func (o *Orchestrator) drawOverlay() {
	defer func() {
		if r := recover(); r != nil {
			o.reportError(fmt.Errorf("overlay panic: %v", r))
		}
	}()

	if o.state == nil || o.state.EnsureInitialized() != overlay.Ready {
		return
	}

	if err := o.state.Frame(o.tick()); err != nil {
		o.reportError(err)
	}
}

// tick returns the seconds since the previous drawn frame. The first frame
// is timed from now.
func (o *Orchestrator) tick() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.last.IsZero() {
		o.last = now
	}
	delta := now.Sub(o.last).Seconds()
	o.last = now
	return delta
}

// reportError logs the first render error at error level and the rest at
// debug, since the same failure tends to repeat every frame.
func (o *Orchestrator) reportError(err error) {
	if o.errLogged.CompareAndSwap(false, true) {
		o.log.Error("overlay frame failed", zap.Error(err))
		return
	}
	o.log.Debug("overlay frame failed", zap.Error(err))
}
