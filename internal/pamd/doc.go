package pamd

// Package pamd edits hand-maintained PAM stack files (e.g. /etc/pam.d/sshd)
// without owning them.
//
// The daemon's directives live in one contiguous region bracketed by marker
// comments ("# authcfgd:begin <name>" / "# authcfgd:end <name>"). Edits
// replace, insert, or remove only that region; administrator lines outside
// it are never rewritten.
