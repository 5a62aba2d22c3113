//go:build amd64

package main

import (
	"testing"

	"github.com/pboyd/framehook/config"
	"github.com/pboyd/framehook/inject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHost(t *testing.T) {
	assert := assert.New(t)

	cfg := config.DefaultConfig()
	cfg.Target.Module = executable()
	cfg.Target.Symbol = presentSymbol

	h := newHost(320, 200)
	injector := inject.New(cfg,
		inject.WithResolver(resolver{}),
		inject.WithRenderer(h.renderer.Factory(), nil),
	)
	require.True(t, injector.Entry(inject.ProcessAttach))

	h.run(10, 0)
	require.NoError(t, injector.Close())

	assert.Equal(10, h.presented)
	assert.Equal(uint64(10), injector.Frames())
	assert.Equal(uint64(10), injector.Overlay().Stats().Frames)

	// The stats panel covers the top left corner.
	assert.NotEqual(h.scene.Image().At(15, 15), h.framebuffer.At(15, 15))

	h.run(1, 0)
	assert.Equal(11, h.presented)
	assert.Equal(uint64(10), injector.Frames())
}
