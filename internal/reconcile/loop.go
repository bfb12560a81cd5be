package reconcile

import (
	"context"
	"fmt"
	"os"

	"github.com/rsh2prasad/authcfgd/internal/aaacfg"
	"github.com/rsh2prasad/authcfgd/internal/configdb"
	"github.com/rsh2prasad/authcfgd/internal/hostfs"
	"github.com/rsh2prasad/authcfgd/internal/logger"
	"github.com/rsh2prasad/authcfgd/internal/metrics"
	"github.com/rsh2prasad/authcfgd/internal/render"
)

// Watched configuration tables.
const (
	TableAAA           = "AAA"
	TableRadius        = "RADIUS"
	TableRadiusServer  = "RADIUS_SERVER"
	TableTacplus       = "TACPLUS"
	TableTacplusServer = "TACPLUS_SERVER"
)

func WatchedTables() []string {
	return []string{TableAAA, TableRadius, TableRadiusServer, TableTacplus, TableTacplusServer}
}

// Config holds every path the loop touches. Callers construct it once and
// pass it in; there is no process-wide mutable path state.
type Config struct {
	TemplateDir        string
	NSSwitchConf       string
	RadiusNSSConf      string
	TacplusNSSConf     string
	PAMRadiusConf      string
	PAMRadiusServerDir string
	PAMAuthFragment    string
	ServiceStacks      []string
}

// Loop is the single-writer reconciliation orchestrator. One pass runs at
// a time; triggers arriving mid-pass coalesce into at most one follow-up.
type Loop struct {
	cfg      Config
	source   configdb.TableSource
	renderer *render.Renderer
}

func New(cfg Config, source configdb.TableSource) *Loop {
	return &Loop{
		cfg:      cfg,
		source:   source,
		renderer: render.New(cfg.TemplateDir),
	}
}

// Run performs one pass immediately (the store may have changed while the
// daemon was down), then one pass per trigger until ctx is done or the
// trigger channel closes. A failed pass is contained: it is logged and the
// loop waits for the next trigger.
func (l *Loop) Run(ctx context.Context, triggers <-chan struct{}) error {
	if err := l.RunOnce(ctx); err != nil {
		logger.Error("reconcile: initial pass failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-triggers:
			if !ok {
				return nil
			}
			if err := l.RunOnce(ctx); err != nil {
				logger.Error("reconcile: pass failed: %v", err)
			}
		}
	}
}

// RunOnce executes a single pass: snapshot, aggregate, render everything,
// then commit. No file is written until every render and stack edit has
// succeeded; a failure during commit unwinds the files already changed in
// this pass.
func (l *Loop) RunOnce(ctx context.Context) error {
	snap, err := l.source.Snapshot(ctx, WatchedTables())
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("snapshot: %w", err)
	}

	st := aaacfg.Aggregate(toInput(snap))
	logger.Info("reconcile: order=%v radius=%v(%d servers) tacplus=%v(%d servers)",
		st.AuthOrder, st.RadiusEnabled, len(st.RadiusServers), st.TacplusEnabled, len(st.TacplusServers))

	files, remove, err := l.buildCandidates(st)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return err
	}

	if st.RadiusEnabled && len(st.RadiusServers) > 0 {
		if err := os.MkdirAll(l.cfg.PAMRadiusServerDir, 0o755); err != nil {
			metrics.PassesTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("create %s: %w", l.cfg.PAMRadiusServerDir, err)
		}
	}

	w := hostfs.NewWriter()
	skipped := 0
	for _, c := range files {
		changed, err := w.Commit(c.path, c.content, c.perm)
		if err != nil {
			logger.Error("reconcile: commit %s failed: %v, unwinding pass", c.path, err)
			if rbErr := w.Rollback(); rbErr != nil {
				logger.Error("reconcile: unwind incomplete: %v", rbErr)
			}
			metrics.PassesTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("commit %s: %w", c.path, err)
		}
		if !changed {
			skipped++
		}
	}

	// Stale per-server configs go last: the outgoing fragment may still
	// reference them until its replacement is on disk.
	for _, path := range remove {
		if changed, err := w.Remove(path); err != nil {
			logger.Warn("reconcile: remove stale %s: %v", path, err)
		} else if changed {
			logger.Info("reconcile: removed stale %s", path)
		}
	}

	metrics.FileWritesTotal.Add(float64(w.Written()))
	metrics.WritesSkippedTotal.Add(float64(skipped))
	if w.Written() == 0 {
		metrics.PassesTotal.WithLabelValues("noop").Inc()
		logger.Info("reconcile: pass complete, no changes")
	} else {
		metrics.PassesTotal.WithLabelValues("ok").Inc()
		logger.Info("reconcile: pass complete, %d file(s) updated", w.Written())
	}
	return nil
}

func toInput(snap configdb.Tables) aaacfg.Input {
	return aaacfg.Input{
		AAA:           toTable(snap[TableAAA]),
		Radius:        toTable(snap[TableRadius]),
		RadiusServer:  toTable(snap[TableRadiusServer]),
		Tacplus:       toTable(snap[TableTacplus]),
		TacplusServer: toTable(snap[TableTacplusServer]),
	}
}

func toTable(rows map[string]map[string]string) aaacfg.Table {
	t := aaacfg.Table{}
	for k, v := range rows {
		t[k] = aaacfg.Row(v)
	}
	return t
}
