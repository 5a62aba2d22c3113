// Package patch is the only place that writes machine code. It prepares
// redirect sites at function entries, builds trampolines that still reach
// the original instructions, and emits small stubs in an executable arena.
//
// Nothing here knows about hooks, signatures or overlays. Callers decide
// what to patch and when; this package only makes the bytes right.
//
// Only amd64 is supported. Other architectures get ErrUnsupportedArch from
// every constructor.
package patch
