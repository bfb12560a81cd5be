package aaacfg

import (
	"sort"
	"strings"

	"github.com/rsh2prasad/authcfgd/internal/logger"
)

// Aggregate merges the raw authentication tables into one resolved
// DesiredAuthState. It never fails: a malformed server row (bad enum,
// non-numeric port) is logged with its table and row key and skipped, and a
// malformed field in a global row falls back to the built-in default. An
// absent AAA table yields local-only login.
func Aggregate(in Input) DesiredAuthState {
	st := DesiredAuthState{AuthOrder: []Method{MethodLocal}}

	if row, ok := in.AAA["authentication"]; ok {
		if v, ok := row["login"]; ok {
			if order := parseAuthOrder(v, logger.Warn); len(order) > 0 {
				st.AuthOrder = order
			}
		}
		if v, ok := row["failthrough"]; ok {
			if b, err := parseBool(v); err != nil {
				logger.Warn("AAA authentication.failthrough: %v, using default", err)
			} else {
				st.Failthrough = b
			}
		}
		if v, ok := row["debug"]; ok {
			if b, err := parseBool(v); err != nil {
				logger.Warn("AAA authentication.debug: %v, using default", err)
			} else {
				st.Debug = b
			}
		}
	}

	st.Radius = resolveRadiusGlobal(in.Radius["global"])
	st.RadiusServers = resolveRadiusServers(in.RadiusServer, st.Radius)
	st.Tacplus = resolveTacplusGlobal(in.Tacplus["global"])
	st.TacplusServers = resolveTacplusServers(in.TacplusServer, st.Tacplus)

	st.RadiusEnabled = orderContains(st.AuthOrder, MethodRadius) && len(st.RadiusServers) > 0
	st.TacplusEnabled = orderContains(st.AuthOrder, MethodTacplus) && len(st.TacplusServers) > 0
	return st
}

func resolveRadiusGlobal(row Row) RadiusGlobal {
	g := RadiusGlobal{
		AuthType:   DefaultAuthType,
		Timeout:    DefaultTimeout,
		Retransmit: DefaultRetransmit,
	}
	if row == nil {
		return g
	}
	if v, ok := row["passkey"]; ok {
		g.Secret = v
	}
	if v, ok := row["auth_type"]; ok {
		if t, err := parseAuthType(v); err != nil {
			logger.Warn("RADIUS global.auth_type: %v, using default", err)
		} else {
			g.AuthType = t
		}
	}
	if v, ok := row["timeout"]; ok {
		if n, err := parseInt(v); err != nil {
			logger.Warn("RADIUS global.timeout: %v, using default", err)
		} else {
			g.Timeout = n
		}
	}
	if v, ok := row["retransmit"]; ok {
		if n, err := parseInt(v); err != nil {
			logger.Warn("RADIUS global.retransmit: %v, using default", err)
		} else {
			g.Retransmit = n
		}
	}
	if v, ok := row["src_intf"]; ok {
		g.SourceInterface = v
	}
	if v, ok := row["nas_ip"]; ok {
		g.NASIP = v
	}
	if v, ok := row["statistics"]; ok {
		if b, err := parseBool(v); err != nil {
			logger.Warn("RADIUS global.statistics: %v, using default", err)
		} else {
			g.Statistics = b
		}
	}
	return g
}

func resolveRadiusServers(t Table, g RadiusGlobal) []RadiusServer {
	var out []RadiusServer
	seen := map[string]bool{}
	for _, key := range sortedKeys(t) {
		row := t[key]
		addr := strings.TrimSpace(key)
		if addr == "" {
			logger.Warn("RADIUS_SERVER: empty address row key, skipping")
			continue
		}
		if seen[addr] {
			logger.Warn("RADIUS_SERVER %s: duplicate address, skipping", addr)
			continue
		}
		s := RadiusServer{
			Address:         addr,
			Secret:          g.Secret,
			AuthPort:        DefaultAuthPort,
			Timeout:         g.Timeout,
			Retransmit:      g.Retransmit,
			AuthType:        g.AuthType,
			SourceInterface: g.SourceInterface,
		}
		bad := false
		for field, v := range row {
			var err error
			switch field {
			case "priority":
				s.Priority, err = parseInt(v)
			case "passkey":
				s.Secret = v
			case "auth_port":
				s.AuthPort, err = parseInt(v)
			case "timeout":
				s.Timeout, err = parseInt(v)
			case "retransmit":
				s.Retransmit, err = parseInt(v)
			case "auth_type":
				s.AuthType, err = parseAuthType(v)
			case "src_intf":
				s.SourceInterface = v
			case "vrf":
				s.VRF = v
			}
			if err != nil {
				logger.Warn("RADIUS_SERVER %s.%s: %v, skipping row", addr, field, err)
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		seen[addr] = true
		out = append(out, s)
	}
	sortRadius(out)
	return out
}

func resolveTacplusGlobal(row Row) TacplusGlobal {
	g := TacplusGlobal{
		AuthType: DefaultAuthType,
		Timeout:  DefaultTimeout,
	}
	if row == nil {
		return g
	}
	if v, ok := row["passkey"]; ok {
		g.Secret = v
	}
	if v, ok := row["auth_type"]; ok {
		if t, err := parseAuthType(v); err != nil {
			logger.Warn("TACPLUS global.auth_type: %v, using default", err)
		} else {
			g.AuthType = t
		}
	}
	if v, ok := row["timeout"]; ok {
		if n, err := parseInt(v); err != nil {
			logger.Warn("TACPLUS global.timeout: %v, using default", err)
		} else {
			g.Timeout = n
		}
	}
	if v, ok := row["src_intf"]; ok {
		g.SourceInterface = v
	}
	return g
}

func resolveTacplusServers(t Table, g TacplusGlobal) []TacplusServer {
	var out []TacplusServer
	seen := map[string]bool{}
	for _, key := range sortedKeys(t) {
		row := t[key]
		addr := strings.TrimSpace(key)
		if addr == "" {
			logger.Warn("TACPLUS_SERVER: empty address row key, skipping")
			continue
		}
		if seen[addr] {
			logger.Warn("TACPLUS_SERVER %s: duplicate address, skipping", addr)
			continue
		}
		s := TacplusServer{
			Address:  addr,
			Secret:   g.Secret,
			TCPPort:  DefaultTCPPort,
			Timeout:  g.Timeout,
			AuthType: g.AuthType,
		}
		bad := false
		for field, v := range row {
			var err error
			switch field {
			case "priority":
				s.Priority, err = parseInt(v)
			case "passkey":
				s.Secret = v
			case "tcp_port":
				s.TCPPort, err = parseInt(v)
			case "timeout":
				s.Timeout, err = parseInt(v)
			case "auth_type":
				s.AuthType, err = parseAuthType(v)
			case "vrf":
				s.VRF = v
			}
			if err != nil {
				logger.Warn("TACPLUS_SERVER %s.%s: %v, skipping row", addr, field, err)
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		seen[addr] = true
		out = append(out, s)
	}
	sortTacplus(out)
	return out
}

// Server order is total: priority first (lower wins), then address. This
// keeps re-renders of identical input byte-identical.
func sortRadius(s []RadiusServer) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority < s[j].Priority
		}
		return s[i].Address < s[j].Address
	})
}

func sortTacplus(s []TacplusServer) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Priority != s[j].Priority {
			return s[i].Priority < s[j].Priority
		}
		return s[i].Address < s[j].Address
	})
}

func sortedKeys(t Table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
