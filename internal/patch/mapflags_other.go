//go:build unix && !(linux && amd64)

package patch

// No portable way to ask for a nearby mapping. Far jumps cover the
// distance when the OS places the arena out of rel32 range.
const mapFlags = 0
