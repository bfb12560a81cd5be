package reconcile

// Package reconcile drives the authentication configuration pipeline:
// snapshot the store, aggregate rows into a DesiredAuthState, render every
// owned file, edit the per-service PAM stacks, then commit in a fixed
// order (NSS before PAM module configs before per-service stacks).
//
// A pass is all-or-nothing up to the commit phase: nothing is written
// until every render and edit has produced its candidate bytes. A failure
// while committing unwinds the files changed so far in that pass.
