package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rsh2prasad/authcfgd/internal/config"
	"github.com/rsh2prasad/authcfgd/internal/configdb"
	"github.com/rsh2prasad/authcfgd/internal/logger"
	"github.com/rsh2prasad/authcfgd/internal/metrics"
	"github.com/rsh2prasad/authcfgd/internal/reconcile"
)

func main() {
	cfgPath := flag.String("config", getenvDefault("AUTHCFGD_CONFIG", ""), "daemon config file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := logger.Init(cfg.LogDir); err != nil {
		log.Fatal(err)
	}
	defer logger.Close()

	if cfg.MetricsListen != "" {
		metrics.Serve(cfg.MetricsListen)
	}

	client := configdb.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = client.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	triggers, err := client.Notifications(ctx, reconcile.WatchedTables())
	if err != nil {
		logger.Error("subscribe to %s db %d: %v", cfg.Redis.Addr, cfg.Redis.DB, err)
		os.Exit(1)
	}

	loop := reconcile.New(reconcile.Config{
		TemplateDir:        cfg.TemplateDir,
		NSSwitchConf:       cfg.Paths.NSSwitchConf,
		RadiusNSSConf:      cfg.Paths.RadiusNSSConf,
		TacplusNSSConf:     cfg.Paths.TacplusNSSConf,
		PAMRadiusConf:      cfg.Paths.PAMRadiusConf,
		PAMRadiusServerDir: cfg.Paths.PAMRadiusServerDir,
		PAMAuthFragment:    cfg.Paths.PAMAuthFragment,
		ServiceStacks:      cfg.Paths.ServiceStacks,
	}, client)

	logger.Info("authcfgd watching %s db %d", cfg.Redis.Addr, cfg.Redis.DB)
	if err := loop.Run(ctx, triggers); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reconcile loop: %v", err)
		os.Exit(1)
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
