// Package encode builds and runs the external tool invocations a job needs:
// the scene encoder that prepares and renders segments, the concatenator that
// joins segment movies and the muxer that produces the deliverable.
//
// Commands are always structured argv slices handed directly to the process
// launcher. Nothing is interpolated into a shell, so paths with spaces or
// quotes pass through untouched.
package encode
