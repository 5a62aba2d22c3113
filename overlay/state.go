package overlay

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gg"
	"go.uber.org/zap"
)

// fpsSmoothing is the weight of the newest sample in the FPS estimate.
const fpsSmoothing = 0.1

// DrawData is one frame of overlay pixels ready to be presented.
type DrawData struct {
	Image  image.Image
	Bounds image.Rectangle
	Frame  Frame
}

// Option configures a State.
type Option func(*State)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *State) {
		if l != nil {
			s.log = l
		}
	}
}

// State owns the overlay's renderer and canvas.
type State struct {
	cfg     Config
	factory RendererFactory
	resolve ProcResolver
	ui      UI
	log     *zap.Logger

	lifecycle atomic.Int32
	err       error // written once before lifecycle becomes Failed

	mu       sync.Mutex
	renderer Renderer
	canvas   *gg.Context
	viewport image.Rectangle
	stats    Stats
	closed   bool
}

// New returns an Uninitialized State. Nothing is created until
// EnsureInitialized is called from the render thread.
func New(cfg Config, factory RendererFactory, resolve ProcResolver, ui UI, opts ...Option) *State {
	s := &State{
		cfg:     cfg,
		factory: factory,
		resolve: resolve,
		ui:      ui,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureInitialized initializes the State if nobody has tried yet and
// returns the resulting lifecycle. If another caller is initializing, it
// returns Initializing without waiting.
func (s *State) EnsureInitialized() Lifecycle {
	if s.lifecycle.CompareAndSwap(int32(Uninitialized), int32(Initializing)) {
		s.initialize()
	}
	return s.Lifecycle()
}

func (s *State) initialize() {
	err := s.build()
	if err != nil {
		s.err = renderError(ContextInitFailed, err)
		s.lifecycle.Store(int32(Failed))
		s.log.Error("overlay initialization failed", zap.Error(s.err))
		return
	}

	s.lifecycle.Store(int32(Ready))
	s.log.Info("overlay ready", zap.Stringer("viewport", s.viewport))
}

func (s *State) build() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if s.factory == nil {
		return errors.New("no renderer factory")
	}
	if s.ui == nil {
		return errors.New("no UI")
	}

	r, err := s.factory(s.resolve)
	if err != nil {
		return err
	}
	if r == nil {
		return errors.New("renderer factory returned nil")
	}

	vp := r.Viewport()
	if vp.Empty() {
		return fmt.Errorf("empty viewport %v", vp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.renderer = r
	s.viewport = vp
	s.canvas = gg.NewContext(vp.Dx(), vp.Dy())
	return nil
}

// Lifecycle returns the current initialization state.
func (s *State) Lifecycle() Lifecycle {
	return Lifecycle(s.lifecycle.Load())
}

// Err returns the initialization error of a Failed State.
func (s *State) Err() error {
	if s.Lifecycle() != Failed {
		return nil
	}
	return s.err
}

// Stats returns the timing figures as of the last frame.
func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// ProduceFrame advances the frame timing by delta seconds and builds the
// UI into the canvas.
func (s *State) ProduceFrame(delta float64) (*DrawData, error) {
	if s.Lifecycle() != Ready {
		return nil, ErrNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produce(delta)
}

// Render presents draw data returned by ProduceFrame.
func (s *State) Render(dd *DrawData) error {
	if s.Lifecycle() != Ready {
		return ErrNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render(dd)
}

// Frame produces and renders one frame.
func (s *State) Frame(delta float64) error {
	if s.Lifecycle() != Ready {
		return ErrNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dd, err := s.produce(delta)
	if err != nil {
		return err
	}
	return s.render(dd)
}

func (s *State) produce(delta float64) (*DrawData, error) {
	if s.closed {
		return nil, ErrNotReady
	}
	if delta < 0 {
		delta = 0
	}

	s.stats.Elapsed += delta
	s.stats.Frames++
	if delta > 0 {
		fps := 1 / delta
		if s.stats.FPS == 0 {
			s.stats.FPS = fps
		} else {
			s.stats.FPS += (fps - s.stats.FPS) * fpsSmoothing
		}
	}

	if vp := s.renderer.Viewport(); vp != s.viewport && !vp.Empty() {
		if err := s.canvas.Resize(vp.Dx(), vp.Dy()); err != nil {
			return nil, renderError(BuildFailed, err)
		}
		s.log.Debug("overlay resized", zap.Stringer("viewport", vp))
		s.viewport = vp
	}

	fr := Frame{Delta: delta, Index: s.stats.Frames}

	s.canvas.ClearWithColor(gg.Transparent)
	err := s.ui.Build(&UIFrame{Canvas: s.canvas, Frame: fr, Stats: s.stats})
	if err != nil {
		return nil, renderError(BuildFailed, err)
	}

	return &DrawData{
		Image:  s.canvas.Image(),
		Bounds: s.viewport,
		Frame:  fr,
	}, nil
}

func (s *State) render(dd *DrawData) error {
	if s.closed {
		return ErrNotReady
	}
	if dd == nil {
		return nil
	}
	if err := s.renderer.Draw(dd); err != nil {
		return renderError(DrawFailed, err)
	}
	return nil
}

// Close releases the canvas and the renderer. The State keeps its
// lifecycle but no longer draws.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.canvas != nil {
		errs = append(errs, s.canvas.Close())
	}
	if c, ok := s.renderer.(io.Closer); ok {
		errs = append(errs, c.Close())
	}

	return errors.Join(errs...)
}
