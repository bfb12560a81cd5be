package reconcile

import (
	"fmt"
	"path/filepath"

	"github.com/rsh2prasad/authcfgd/internal/aaacfg"
	"github.com/rsh2prasad/authcfgd/internal/pamd"
)

// authModule is one rendered line of the shared PAM authentication
// fragment: "auth <control> <module> <args>".
type authModule struct {
	Control string
	Module  string
	Args    string
}

// PAM control fields. A method that succeeds finishes the stack; what
// happens on failure depends on the AAA failthrough switch.
const (
	controlContinue = "[success=done new_authtok_reqd=done default=ignore]"
	controlStop     = "[success=done new_authtok_reqd=done authinfo_unavail=ignore default=die]"
	controlFinal    = "[success=done new_authtok_reqd=done default=die]"
)

// authModules expands the resolved state into the ordered module lines of
// the shared fragment. Disabled backends are dropped even when AAA names
// them; if nothing remains, local is appended so a misconfigured order can
// never lock every login path out.
func authModules(st aaacfg.DesiredAuthState, serverConfDir string) []authModule {
	var methods []aaacfg.Method
	for _, m := range st.AuthOrder {
		switch m {
		case aaacfg.MethodRadius:
			if st.RadiusEnabled {
				methods = append(methods, m)
			}
		case aaacfg.MethodTacplus:
			if st.TacplusEnabled {
				methods = append(methods, m)
			}
		case aaacfg.MethodLocal:
			methods = append(methods, m)
		}
	}
	if len(methods) == 0 {
		methods = []aaacfg.Method{aaacfg.MethodLocal}
	}

	var out []authModule
	for i, m := range methods {
		final := i == len(methods)-1
		switch m {
		case aaacfg.MethodRadius:
			for j, s := range st.RadiusServers {
				out = append(out, authModule{
					Control: serverControl(final && j == len(st.RadiusServers)-1, st.Failthrough),
					Module:  "pam_radius_auth.so",
					Args:    radiusArgs(s, serverConfDir, st.Debug),
				})
			}
		case aaacfg.MethodTacplus:
			for j, s := range st.TacplusServers {
				out = append(out, authModule{
					Control: serverControl(final && j == len(st.TacplusServers)-1, st.Failthrough),
					Module:  "pam_tacplus.so",
					Args:    tacplusArgs(s, st.Debug),
				})
			}
		case aaacfg.MethodLocal:
			control := controlFinal
			if !final {
				control = serverControl(false, st.Failthrough)
			}
			out = append(out, authModule{
				Control: control,
				Module:  "pam_unix.so",
				Args:    "nullok try_first_pass",
			})
		}
	}
	return out
}

func serverControl(final, failthrough bool) string {
	if final {
		return controlFinal
	}
	if failthrough {
		return controlContinue
	}
	return controlStop
}

func radiusArgs(s aaacfg.RadiusServer, confDir string, debug bool) string {
	args := "conf=" + filepath.Join(confDir, serverConfName(s))
	if debug {
		args += " debug"
	}
	return args
}

func tacplusArgs(s aaacfg.TacplusServer, debug bool) string {
	args := fmt.Sprintf("server=%s:%d secret=%s timeout=%d login=%s try_first_pass",
		s.Address, s.TCPPort, s.Secret, s.Timeout, s.AuthType)
	if s.VRF != "" {
		args += " vrf=" + s.VRF
	}
	if debug {
		args += " debug"
	}
	return args
}

// serverConfName is the managed per-server config filename inside the
// PAM RADIUS server directory.
func serverConfName(s aaacfg.RadiusServer) string {
	return fmt.Sprintf("%s_%d.conf", s.Address, s.AuthPort)
}

// serviceFragment is what a per-service stack (sshd, login) carries inside
// its managed region: an include of the shared fragment when a remote
// backend is active, nothing at all otherwise.
func serviceFragment(st aaacfg.DesiredAuthState, fragmentPath string) pamd.Fragment {
	frag := pamd.Fragment{Name: "auth"}
	if st.RadiusEnabled || st.TacplusEnabled {
		frag.Lines = []string{"@include " + filepath.Base(fragmentPath)}
	}
	return frag
}
