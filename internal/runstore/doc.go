// Package runstore records analysis runs in SQLite and serializes runs
// with a lock file.
//
// Each run gets a UUID row holding its input, output, status, frame counts
// and the analytics report as JSON; the context records of a run live in a
// child table so `cspanlens show` can print a topic timeline after the fact.
package runstore
