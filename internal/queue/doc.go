// Package queue persists transcode jobs in SQLite and exposes the work queue
// that workers pull units from.
//
// A submitted job stores its shared package, its ordered work units and the
// callbacks that unblock them. Workers claim pending units with Next, report
// them with Complete or Fail, and keep them alive with Heartbeat. Completing a
// unit evaluates the job's unfired callbacks inside the same transaction, so
// the blocked, pending, running, complete chain of each unit is driven only by
// recorded completions and never by the submitter.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
