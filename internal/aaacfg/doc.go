package aaacfg

// Package aaacfg turns raw AAA/RADIUS/TACACS+ configuration rows into one
// resolved DesiredAuthState.
//
// Resolution is three-tiered: a server row's own value wins, then the
// matching global default, then a built-in default. Server lists come out
// sorted by (priority, address) so downstream rendering is deterministic.
