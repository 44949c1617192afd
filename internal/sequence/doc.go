// Package sequence models a numbered image sequence on disk.
//
// A Descriptor is derived once from any example frame path: the trailing run
// of two or more digits before the extension is the frame number and its
// length fixes the zero padding for every other frame. Frame paths are then
// rebuilt from the descriptor, never globbed, except where the caller asks for
// the sequence bounds.
package sequence
