// Package framerange implements compact sets of non-negative frame numbers
// and their textual "1-10,12" form.
//
// A Set is stored as sorted, non-adjacent inclusive runs so that very large
// spans stay cheap. Parse and String round-trip: Parse(s.String()) always
// yields a set equal to s. Sets are values; every operation returns a new Set
// and never mutates its receiver.
package framerange
