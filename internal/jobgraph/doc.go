// Package jobgraph describes a transcode job as a fixed three-tier graph of
// work units: one Initialize unit that prepares the scene, Segment units that
// each encode a slice of the frame range, and Output units that assemble
// finished segments into deliverables.
//
// The package only describes the graph. Segment and Output units start
// blocked, and the queue releases them by evaluating the graph's callbacks as
// units complete. Callbacks are plain data: a conjunction of
// complete-work-self-<unit> atoms and a built-in action naming the units to
// release.
//
// Unit packages cross the queue boundary as string maps. The Decode*
// constructors turn them back into typed packages and reject unknown or
// missing keys.
package jobgraph
