// Package textutil provides small string helpers shared by the CLI and the
// logging setup.
//
// The primary use cases are:
//   - Sanitizing operator supplied names before they become file names
//   - Normalizing worker identifiers into lowercase tokens
package textutil
