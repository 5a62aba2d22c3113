// Package overlay draws a small UI on top of frames rendered by a host
// application.
//
// A State is created cheaply and initialized lazily from the first frame,
// because the graphics context it renders into only exists on the host's
// render thread:
//
//	state := overlay.New(cfg, factory, resolve, ui)
//	...
//	// once per host frame, before the host presents
//	if state.EnsureInitialized() == overlay.Ready {
//		state.Frame(delta)
//	}
//
// Initialization happens at most once. If it fails the State stays Failed
// and never draws.
package overlay
