// Command framehook-demo runs a simulated host render loop, injects the
// overlay into its present function and writes the last frame to a PNG.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/pboyd/framehook"
	"github.com/pboyd/framehook/config"
	"github.com/pboyd/framehook/inject"
	"github.com/pboyd/framehook/symbol"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const presentSymbol = "main.swapBuffers"

func main() {
	var (
		configPath string
		logLevel   string
		frames     int
		fps        float64
		width      int
		height     int
		out        string
	)
	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.IntVar(&frames, "frames", 120, "number of frames to render")
	flag.Float64Var(&fps, "fps", 60, "frame rate of the simulated host, 0 for unlimited")
	flag.IntVar(&width, "width", 640, "framebuffer width")
	flag.IntVar(&height, "height", 360, "framebuffer height")
	flag.StringVar(&out, "out", "frame.png", "where to write the last frame")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if configPath == "" {
		cfg.Target.Module = executable()
		cfg.Target.Symbol = presentSymbol
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	host := newHost(width, height)

	injector := inject.New(cfg,
		inject.WithLogger(logger),
		inject.WithResolver(resolver{}),
		inject.WithRenderer(host.renderer.Factory(), nil),
		inject.WithConfigPath(configPath),
	)
	if !injector.Entry(inject.ProcessAttach) {
		logger.Fatal("injection failed", zap.Error(injector.Attach()))
	}

	host.run(frames, fps)

	injector.Entry(inject.ProcessDetach)
	if err := injector.Close(); err != nil {
		logger.Error("close failed", zap.Error(err))
	}

	if st := injector.Overlay(); st != nil {
		stats := st.Stats()
		logger.Info("overlay stats",
			zap.Uint64("frames", stats.Frames),
			zap.Float64("fps", math.Round(stats.FPS*10)/10),
			zap.Stringer("lifecycle", st.Lifecycle()),
		)
	}
	logger.Info("host finished",
		zap.Int("presented", host.presented),
		zap.Uint64("intercepted", injector.Frames()),
	)

	if err := gg.NewContextForImage(host.framebuffer).SavePNG(out); err != nil {
		logger.Fatal("write frame", zap.String("path", out), zap.Error(err))
	}
	logger.Info("frame written", zap.String("path", out))
}

// resolver looks symbols up in the process and falls back to the demo's
// own present function, which Windows cannot find by name.
type resolver struct{}

func (resolver) Resolve(module, sym string) (symbol.Target, error) {
	target, err := symbol.Resolve(module, sym)
	if err == nil || module != executable() || sym != presentSymbol {
		return target, err
	}
	return symbol.Target{Module: module, Symbol: sym, Address: framehook.EntryOf(swapBuffers)}, nil
}

func executable() string {
	exe, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Base(exe)
}

func newLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return cfg.Build()
}
