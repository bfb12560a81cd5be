package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rsh2prasad/authcfgd/internal/aaacfg"
	"github.com/rsh2prasad/authcfgd/internal/pamd"
	"github.com/rsh2prasad/authcfgd/internal/render"
)

// Template ids, one per owned output file.
const (
	tmplNSSwitch        = "nsswitch.conf"
	tmplRadiusNSS       = "radius_nss.conf"
	tmplTacplusNSS      = "tacplus_nss.conf"
	tmplPAMRadius       = "pam_radius_auth.conf"
	tmplPAMRadiusServer = "pam_radius_server.conf"
	tmplAuthFragment    = "common-auth"
)

// candidate is one fully rendered output file, not yet written. perm only
// applies when the file does not exist yet; an existing file keeps its
// mode.
type candidate struct {
	path    string
	content []byte
	perm    os.FileMode
}

// buildCandidates renders every output for st without touching disk. The
// returned slice is already in commit order: NSS files, then PAM module
// configs, then the shared fragment, then the per-service stacks. remove
// lists stale managed per-server configs to drop during commit.
//
// Any failure here aborts the whole pass before a single byte lands on
// disk.
func (l *Loop) buildCandidates(st aaacfg.DesiredAuthState) (files []candidate, remove []string, err error) {
	add := func(id, path string, perm os.FileMode, ctx render.Context) error {
		text, err := l.renderer.Render(id, ctx)
		if err != nil {
			return fmt.Errorf("render %s for %s: %w", id, path, err)
		}
		files = append(files, candidate{path: path, content: []byte(text), perm: perm})
		return nil
	}

	// NSS lookup configuration first: during the commit window, lookups
	// must be at least as permissive as the stacks that depend on them.
	if err := add(tmplNSSwitch, l.cfg.NSSwitchConf, 0o644, nsswitchContext(st)); err != nil {
		return nil, nil, err
	}
	if err := add(tmplRadiusNSS, l.cfg.RadiusNSSConf, 0o644, radiusNSSContext(st)); err != nil {
		return nil, nil, err
	}
	// The TACACS+ NSS config carries shared secrets; keep it root-only.
	if err := add(tmplTacplusNSS, l.cfg.TacplusNSSConf, 0o600, tacplusNSSContext(st)); err != nil {
		return nil, nil, err
	}

	if err := add(tmplPAMRadius, l.cfg.PAMRadiusConf, 0o600, pamRadiusContext(st)); err != nil {
		return nil, nil, err
	}

	expected := map[string]bool{}
	if st.RadiusEnabled {
		for _, s := range st.RadiusServers {
			name := serverConfName(s)
			expected[name] = true
			ctx := radiusServerContext(st, s)
			if err := add(tmplPAMRadiusServer, filepath.Join(l.cfg.PAMRadiusServerDir, name), 0o600, ctx); err != nil {
				return nil, nil, err
			}
		}
	}
	remove = l.staleServerConfs(expected)

	if err := add(tmplAuthFragment, l.cfg.PAMAuthFragment, 0o600, authFragmentContext(st, l.cfg.PAMRadiusServerDir)); err != nil {
		return nil, nil, err
	}

	frag := serviceFragment(st, l.cfg.PAMAuthFragment)
	for _, stack := range l.cfg.ServiceStacks {
		text, err := pamd.ApplyFile(stack, frag)
		if err != nil {
			return nil, nil, fmt.Errorf("edit %s: %w", stack, err)
		}
		files = append(files, candidate{path: stack, content: []byte(text), perm: 0o644})
	}
	return files, remove, nil
}

// staleServerConfs lists managed per-server configs on disk that no
// resolved server accounts for anymore.
func (l *Loop) staleServerConfs(expected map[string]bool) []string {
	entries, err := os.ReadDir(l.cfg.PAMRadiusServerDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".conf") || expected[name] {
			continue
		}
		out = append(out, filepath.Join(l.cfg.PAMRadiusServerDir, name))
	}
	return out
}

func nsswitchContext(st aaacfg.DesiredAuthState) render.Context {
	sources := "compat"
	if st.TacplusEnabled {
		sources = "tacplus " + sources
	}
	if st.RadiusEnabled {
		sources = sources + " radius"
	}
	return render.Context{
		"passwd_sources":  sources,
		"radius_enabled":  st.RadiusEnabled,
		"tacplus_enabled": st.TacplusEnabled,
	}
}

func radiusNSSContext(st aaacfg.DesiredAuthState) render.Context {
	servers := make([]render.Context, 0, len(st.RadiusServers))
	for _, s := range st.RadiusServers {
		servers = append(servers, render.Context{
			"address":    s.Address,
			"auth_port":  s.AuthPort,
			"timeout":    s.Timeout,
			"retransmit": s.Retransmit,
			"auth_type":  string(s.AuthType),
			"src_intf":   s.SourceInterface,
			"vrf":        s.VRF,
		})
	}
	return render.Context{
		"enabled":    st.RadiusEnabled,
		"debug":      st.Debug,
		"statistics": st.Radius.Statistics,
		"nas_ip":     st.Radius.NASIP,
		"src_intf":   st.Radius.SourceInterface,
		"servers":    servers,
	}
}

func tacplusNSSContext(st aaacfg.DesiredAuthState) render.Context {
	servers := make([]render.Context, 0, len(st.TacplusServers))
	for _, s := range st.TacplusServers {
		servers = append(servers, render.Context{
			"address":  s.Address,
			"tcp_port": s.TCPPort,
			"secret":   s.Secret,
			"timeout":  s.Timeout,
			"vrf":      s.VRF,
		})
	}
	return render.Context{
		"enabled":  st.TacplusEnabled,
		"debug":    st.Debug,
		"src_intf": st.Tacplus.SourceInterface,
		"servers":  servers,
	}
}

func pamRadiusContext(st aaacfg.DesiredAuthState) render.Context {
	servers := make([]render.Context, 0, len(st.RadiusServers))
	for _, s := range st.RadiusServers {
		servers = append(servers, radiusServerFields(s))
	}
	return render.Context{
		"enabled": st.RadiusEnabled,
		"debug":   st.Debug,
		"nas_ip":  st.Radius.NASIP,
		"servers": servers,
	}
}

func radiusServerContext(st aaacfg.DesiredAuthState, s aaacfg.RadiusServer) render.Context {
	ctx := radiusServerFields(s)
	ctx["debug"] = st.Debug
	ctx["nas_ip"] = st.Radius.NASIP
	return ctx
}

func radiusServerFields(s aaacfg.RadiusServer) render.Context {
	return render.Context{
		"address":    s.Address,
		"auth_port":  s.AuthPort,
		"secret":     s.Secret,
		"timeout":    s.Timeout,
		"retransmit": s.Retransmit,
		"auth_type":  string(s.AuthType),
		"src_intf":   s.SourceInterface,
		"vrf":        s.VRF,
	}
}

func authFragmentContext(st aaacfg.DesiredAuthState, serverConfDir string) render.Context {
	mods := authModules(st, serverConfDir)
	lines := make([]string, 0, len(mods))
	for _, m := range mods {
		lines = append(lines, fmt.Sprintf("auth %s %s %s", m.Control, m.Module, m.Args))
	}
	return render.Context{
		"modules":     lines,
		"failthrough": st.Failthrough,
	}
}
