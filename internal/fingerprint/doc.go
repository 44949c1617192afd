// Package fingerprint detects which frames of an image sequence changed since
// the last successful encode.
//
// Every frame file is reduced to a comparable token, either its modification
// time or an MD5 content hash. Tokens from the last successful encode live in
// a small SQLite database beside the sequence, and a segment is re-encoded
// when any frame in its range was added, removed, or modified since then.
package fingerprint
