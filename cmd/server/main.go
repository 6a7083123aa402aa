package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/server"
	"github.com/yurifrl/kupa/pkg/store"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          "kupa",
	})

	flags := pflag.NewFlagSet("kupa-server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "Config file (default ./config.yaml)")
	flags.String("addr", "", "Listen address")
	flags.String("store", "", "Row store driver: memory, postgres or sheets")
	flags.String("log-level", "", "Log level")
	flags.String("layout", "", "Report layout: auto, labeled or positional")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		logger.Fatal("failed to load config", "err", err)
	}
	logger.SetLevel(cfg.Level())

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("failed to open store", "driver", cfg.Store.Driver, "err", err)
	}
	defer st.Close()

	srv, err := server.New(cfg, logger, st)
	if err != nil {
		logger.Fatal("failed to create server", "err", err)
	}
	logger.Info("starting server", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
