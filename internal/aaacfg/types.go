package aaacfg

// Row is one configuration-store row: field name to string value.
type Row map[string]string

// Table maps row key to row. For server tables the row key is the server
// address.
type Table map[string]Row

// Input carries the raw authentication tables of one snapshot.
type Input struct {
	AAA           Table
	Radius        Table
	RadiusServer  Table
	Tacplus       Table
	TacplusServer Table
}

type Method string

const (
	MethodLocal   Method = "local"
	MethodRadius  Method = "radius"
	MethodTacplus Method = "tacplus"
)

type AuthType string

const (
	AuthTypePAP      AuthType = "pap"
	AuthTypeCHAP     AuthType = "chap"
	AuthTypeMSCHAPv2 AuthType = "mschapv2"
)

// Built-in defaults, applied when neither the server row nor the global row
// carries a value.
const (
	DefaultTimeout    = 5
	DefaultRetransmit = 3
	DefaultAuthPort   = 1812
	DefaultTCPPort    = 49
)

const DefaultAuthType = AuthTypePAP

type AAAConfig struct {
	AuthOrder   []Method
	Failthrough bool
	Debug       bool
}

// RadiusGlobal is the resolved RADIUS global row: every field concrete.
type RadiusGlobal struct {
	Secret          string
	AuthType        AuthType
	Timeout         int
	Retransmit      int
	SourceInterface string
	NASIP           string
	Statistics      bool
}

// RadiusServer is one fully resolved RADIUS server.
type RadiusServer struct {
	Address         string
	Priority        int
	Secret          string
	AuthPort        int
	Timeout         int
	Retransmit      int
	AuthType        AuthType
	SourceInterface string
	VRF             string
}

// TacplusGlobal is the resolved TACACS+ global row.
type TacplusGlobal struct {
	Secret          string
	AuthType        AuthType
	Timeout         int
	SourceInterface string
}

// TacplusServer is one fully resolved TACACS+ server.
type TacplusServer struct {
	Address  string
	Priority int
	Secret   string
	TCPPort  int
	Timeout  int
	AuthType AuthType
	VRF      string
}

// DesiredAuthState is the merged snapshot one reconciliation pass works
// from. Each pass builds a fresh value; nothing mutates it afterwards.
type DesiredAuthState struct {
	AuthOrder   []Method
	Failthrough bool
	Debug       bool

	Radius         RadiusGlobal
	RadiusServers  []RadiusServer
	Tacplus        TacplusGlobal
	TacplusServers []TacplusServer

	// A backend counts as enabled only when it is named in AuthOrder and
	// has at least one resolved server. A method with no reachable server
	// must never be left active in a PAM stack.
	RadiusEnabled  bool
	TacplusEnabled bool
}

func orderContains(order []Method, m Method) bool {
	for _, o := range order {
		if o == m {
			return true
		}
	}
	return false
}
