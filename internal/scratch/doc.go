// Package scratch manages the transcoder folder that jobs write into.
//
// Segment files live under Segments/<output stem>/ and prepared scenes under
// Blender/. Both survive their job so a later submission with smart update
// can reuse unchanged segments; this package lists that space and removes
// entries nobody has touched for a while.
package scratch
