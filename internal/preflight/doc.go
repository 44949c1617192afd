// Package preflight provides readiness checks for the directories and
// external tools a render node depends on.
//
// These checks run in two contexts:
//   - A worker calls RunAll before it starts polling. If any check fails the
//     worker refuses to start rather than failing every unit it claims.
//   - The CLI "reelforge status" command uses the individual checks
//     (CheckDirectoryAccess, CheckSystemDeps) to display node health.
package preflight
