package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsh2prasad/authcfgd/internal/configdb"
	"github.com/rsh2prasad/authcfgd/internal/pamd"
	"github.com/rsh2prasad/authcfgd/internal/render"
)

const templateDir = "../../data/templates"

const sshdStack = `#%PAM-1.0
auth	required	pam_env.so
@include common-auth
@include common-account
session	required	pam_limits.so
`

const loginStack = `#%PAM-1.0
auth	optional	pam_faildelay.so	delay=3000000
@include common-auth
@include common-account
session	required	pam_env.so readenv=1
`

type fakeSource struct {
	tables configdb.Tables
}

func (f *fakeSource) Snapshot(ctx context.Context, tables []string) (configdb.Tables, error) {
	return f.tables, nil
}

func radiusTables() configdb.Tables {
	return configdb.Tables{
		TableAAA:    {"authentication": {"login": "radius,local"}},
		TableRadius: {"global": {"passkey": "s3cr3t"}},
		TableRadiusServer: {
			"10.0.0.1": {"priority": "1"},
		},
	}
}

func newTestLoop(t *testing.T, tmplDir string, src *fakeSource) (*Loop, Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		TemplateDir:        tmplDir,
		NSSwitchConf:       filepath.Join(dir, "nsswitch.conf"),
		RadiusNSSConf:      filepath.Join(dir, "radius_nss.conf"),
		TacplusNSSConf:     filepath.Join(dir, "tacplus_nss.conf"),
		PAMRadiusConf:      filepath.Join(dir, "pam_radius_auth.conf"),
		PAMRadiusServerDir: filepath.Join(dir, "pam_radius_auth.d"),
		PAMAuthFragment:    filepath.Join(dir, "common-auth-sonic"),
		ServiceStacks: []string{
			filepath.Join(dir, "sshd"),
			filepath.Join(dir, "login"),
		},
	}
	require.NoError(t, os.WriteFile(cfg.ServiceStacks[0], []byte(sshdStack), 0o644))
	require.NoError(t, os.WriteFile(cfg.ServiceStacks[1], []byte(loginStack), 0o644))
	return New(cfg, src), cfg
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestEndToEndRadius(t *testing.T) {
	loop, cfg := newTestLoop(t, templateDir, &fakeSource{tables: radiusTables()})
	require.NoError(t, loop.RunOnce(context.Background()))

	// The RADIUS client config names the server and its inherited secret.
	pamRadius := readFile(t, cfg.PAMRadiusConf)
	assert.Contains(t, pamRadius, "10.0.0.1:1812")
	assert.Contains(t, pamRadius, "s3cr3t")

	perServer := readFile(t, filepath.Join(cfg.PAMRadiusServerDir, "10.0.0.1_1812.conf"))
	assert.Contains(t, perServer, "server=10.0.0.1:1812")
	assert.Contains(t, perServer, "secret=s3cr3t")
	assert.Contains(t, perServer, "timeout=5")
	assert.Contains(t, perServer, "retransmit=3")

	// NSS lookup order includes radius.
	assert.Contains(t, readFile(t, cfg.NSSwitchConf), "compat radius")
	assert.Contains(t, readFile(t, cfg.RadiusNSSConf), "server=10.0.0.1:1812")

	// The shared fragment tries RADIUS before local.
	fragment := readFile(t, cfg.PAMAuthFragment)
	radiusAt := strings.Index(fragment, "pam_radius_auth.so")
	localAt := strings.Index(fragment, "pam_unix.so")
	require.Greater(t, radiusAt, 0)
	require.Greater(t, localAt, 0)
	assert.Less(t, radiusAt, localAt, "RADIUS must be tried before local auth")
	assert.Contains(t, fragment, "conf="+filepath.Join(cfg.PAMRadiusServerDir, "10.0.0.1_1812.conf"))

	// Both service stacks carry the managed include, ahead of common-auth.
	for _, stack := range cfg.ServiceStacks {
		content := readFile(t, stack)
		includeAt := strings.Index(content, "@include common-auth-sonic")
		stockAt := strings.Index(content, "@include common-auth\n")
		require.Greater(t, includeAt, 0, stack)
		require.Greater(t, stockAt, 0, stack)
		assert.Less(t, includeAt, stockAt, stack)
		assert.Contains(t, content, "# authcfgd:begin auth")
	}
}

func TestIdempotentSecondPass(t *testing.T) {
	loop, cfg := newTestLoop(t, templateDir, &fakeSource{tables: radiusTables()})
	require.NoError(t, loop.RunOnce(context.Background()))

	// Pin mtimes in the past; an unchanged second pass must not touch them.
	past := time.Now().Add(-time.Hour)
	paths := []string{
		cfg.NSSwitchConf, cfg.RadiusNSSConf, cfg.TacplusNSSConf,
		cfg.PAMRadiusConf, cfg.PAMAuthFragment,
		filepath.Join(cfg.PAMRadiusServerDir, "10.0.0.1_1812.conf"),
		cfg.ServiceStacks[0], cfg.ServiceStacks[1],
	}
	before := map[string]string{}
	for _, p := range paths {
		before[p] = readFile(t, p)
		require.NoError(t, os.Chtimes(p, past, past))
	}

	require.NoError(t, loop.RunOnce(context.Background()))

	for _, p := range paths {
		assert.Equal(t, before[p], readFile(t, p), p)
		st, err := os.Stat(p)
		require.NoError(t, err)
		assert.True(t, st.ModTime().Equal(past), "unexpected write to %s", p)
	}
}

func TestDisableRemovesManagedState(t *testing.T) {
	src := &fakeSource{tables: radiusTables()}
	loop, cfg := newTestLoop(t, templateDir, src)
	require.NoError(t, loop.RunOnce(context.Background()))
	require.Contains(t, readFile(t, cfg.ServiceStacks[0]), "common-auth-sonic")

	// Server rows disappear: fail-safe disablement.
	src.tables = configdb.Tables{
		TableAAA: {"authentication": {"login": "radius,local"}},
	}
	require.NoError(t, loop.RunOnce(context.Background()))

	assert.Equal(t, sshdStack, readFile(t, cfg.ServiceStacks[0]),
		"managed region removed, admin lines intact")
	assert.Equal(t, loginStack, readFile(t, cfg.ServiceStacks[1]))
	assert.NotContains(t, readFile(t, cfg.NSSwitchConf), "radius")
	assert.NotContains(t, readFile(t, cfg.PAMAuthFragment), "pam_radius_auth.so")

	_, err := os.Stat(filepath.Join(cfg.PAMRadiusServerDir, "10.0.0.1_1812.conf"))
	assert.True(t, os.IsNotExist(err), "stale per-server config removed")
}

func TestRenderFailureLeavesDiskUntouched(t *testing.T) {
	// Template set missing one file: the pass must abort before any write.
	tmplDir := t.TempDir()
	entries, err := os.ReadDir(templateDir)
	require.NoError(t, err)
	for _, e := range entries {
		b, err := os.ReadFile(filepath.Join(templateDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(tmplDir, e.Name()), b, 0o644))
	}
	require.NoError(t, os.Remove(filepath.Join(tmplDir, "tacplus_nss.conf.tmpl")))

	loop, cfg := newTestLoop(t, tmplDir, &fakeSource{tables: radiusTables()})
	err = loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, render.ErrTemplateNotFound)

	assert.Equal(t, sshdStack, readFile(t, cfg.ServiceStacks[0]))
	assert.Equal(t, loginStack, readFile(t, cfg.ServiceStacks[1]))
	_, statErr := os.Stat(cfg.NSSwitchConf)
	assert.True(t, os.IsNotExist(statErr), "nothing committed on a failed pass")
	_, statErr = os.Stat(cfg.PAMRadiusConf)
	assert.True(t, os.IsNotExist(statErr))
}

func TestMissingStackAbortsPass(t *testing.T) {
	loop, cfg := newTestLoop(t, templateDir, &fakeSource{tables: radiusTables()})
	require.NoError(t, os.Remove(cfg.ServiceStacks[0]))

	err := loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, pamd.ErrMissingTarget)

	_, statErr := os.Stat(cfg.NSSwitchConf)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, loginStack, readFile(t, cfg.ServiceStacks[1]))
}

func TestCorruptMarkersAbortPass(t *testing.T) {
	loop, cfg := newTestLoop(t, templateDir, &fakeSource{tables: radiusTables()})
	corrupt := "# authcfgd:begin auth\nx\n# authcfgd:end auth\n# authcfgd:begin auth\ny\n# authcfgd:end auth\n"
	require.NoError(t, os.WriteFile(cfg.ServiceStacks[0], []byte(corrupt), 0o644))

	err := loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, pamd.ErrAmbiguousMarker)
	assert.Equal(t, corrupt, readFile(t, cfg.ServiceStacks[0]), "never guess on corrupt markers")
}

func TestLocalOnlyConfiguration(t *testing.T) {
	src := &fakeSource{tables: configdb.Tables{}}
	loop, cfg := newTestLoop(t, templateDir, src)
	require.NoError(t, loop.RunOnce(context.Background()))

	nsswitch := readFile(t, cfg.NSSwitchConf)
	assert.Contains(t, nsswitch, "passwd:")
	assert.NotContains(t, nsswitch, "radius")
	assert.NotContains(t, nsswitch, "tacplus")
	fragment := readFile(t, cfg.PAMAuthFragment)
	assert.Contains(t, fragment, "pam_unix.so")
	assert.NotContains(t, fragment, "pam_radius_auth.so")
	assert.NotContains(t, fragment, "pam_tacplus.so")
	assert.Equal(t, sshdStack, readFile(t, cfg.ServiceStacks[0]))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	loop, _ := newTestLoop(t, templateDir, &fakeSource{tables: radiusTables()})

	ctx, cancel := context.WithCancel(context.Background())
	triggers := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx, triggers) }()

	triggers <- struct{}{}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
