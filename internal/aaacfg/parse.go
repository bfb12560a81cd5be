package aaacfg

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse helpers for configuration-store field values. All values arrive as
// strings; a value that does not parse is reported so the caller can log
// and skip it rather than abort the pass.

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "enable", "enabled", "on":
		return true, nil
	case "false", "no", "disable", "disabled", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", v)
}

func parseInt(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("invalid int %q", v)
	}
	return n, nil
}

func parseAuthType(v string) (AuthType, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pap":
		return AuthTypePAP, nil
	case "chap":
		return AuthTypeCHAP, nil
	case "mschapv2", "mschap":
		return AuthTypeMSCHAPv2, nil
	}
	return "", fmt.Errorf("invalid auth_type %q", v)
}

func parseMethod(v string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "local":
		return MethodLocal, nil
	case "radius":
		return MethodRadius, nil
	case "tacacs+", "tacplus":
		return MethodTacplus, nil
	}
	return "", fmt.Errorf("invalid authentication method %q", v)
}

// parseAuthOrder parses a comma-separated login method list such as
// "radius,local". Unknown and duplicate methods are dropped; the caller
// logs each via warn. An empty result is the caller's cue to fall back to
// local-only.
func parseAuthOrder(v string, warn func(format string, args ...interface{})) []Method {
	var order []Method
	for _, tok := range strings.Split(v, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		m, err := parseMethod(tok)
		if err != nil {
			warn("AAA authentication: %v, skipping", err)
			continue
		}
		if orderContains(order, m) {
			warn("AAA authentication: duplicate method %q, skipping", tok)
			continue
		}
		order = append(order, m)
	}
	return order
}
