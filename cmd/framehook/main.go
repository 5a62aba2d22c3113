//go:build windows

// Command framehook builds the injectable DLL:
//
//	go build -buildmode=c-shared -o framehook.dll ./cmd/framehook
//
// The hook is attached as soon as the DLL is loaded. The configuration is
// read from the file named by FRAMEHOOK_CONFIG, if set, and FRAMEHOOK_*
// variables. Logs go to the file named by FRAMEHOOK_LOG, or stderr.
package main

import "C"

import (
	"fmt"
	"os"

	"github.com/pboyd/framehook/config"
	"github.com/pboyd/framehook/inject"
	"github.com/pboyd/framehook/overlay/gl"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var injector *inject.Injector

// The Go runtime runs init functions on its own thread once the DLL is
// loaded, outside the loader lock.
func init() {
	configPath := os.Getenv("FRAMEHOOK_CONFIG")

	cfg, cfgErr := config.Load(configPath)
	if cfgErr != nil {
		cfg = config.DefaultConfig()
	}

	logger, err := newLogger(cfg.LogLevel, os.Getenv("FRAMEHOOK_LOG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "framehook: failed to create logger: %v\n", err)
		logger = zap.NewNop()
	}
	if cfgErr != nil {
		logger.Warn("using default config", zap.Error(cfgErr))
	}

	injector = inject.New(cfg,
		inject.WithLogger(logger),
		inject.WithRenderer(gl.Factory, gl.ProcAddress),
		inject.WithConfigPath(configPath),
	)
	injector.Entry(inject.ProcessAttach)
}

// FramehookEntry forwards a DllMain reason code for loaders that want to
// drive the injector themselves. It returns 1 on success.
//
//export FramehookEntry
func FramehookEntry(reason uint32) int32 {
	if injector.Entry(inject.Reason(reason)) {
		return 1
	}
	return 0
}

func newLogger(level, path string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}

	output := "stderr"
	if path != "" {
		output = path
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Encoding:         "console",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{output},
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	return cfg.Build()
}

func main() {}
