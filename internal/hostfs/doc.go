package hostfs

// Package hostfs provides safe access helpers for authentication files on
// the host (/etc/nsswitch.conf, /etc/pam.d/*, RADIUS and TACACS+ client
// configs).
//
// Writes go through a temp file plus atomic rename so a reader never sees a
// half-written file; per-path mutexes serialize access within the process.
// Writer adds equal-content skip (so mtime watchers do not fire needlessly)
// and a per-pass journal for unwinding a failed commit sequence.
