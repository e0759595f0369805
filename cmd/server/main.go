package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mir00r/cluster-manager/internal/admin"
	"github.com/mir00r/cluster-manager/internal/config"
	"github.com/mir00r/cluster-manager/internal/manager"
	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		File:   cfg.Logging.File,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting cluster manager")

	store := stats.NewStore()
	rt := runtime.NewLoader(nil, nil)
	mgr := manager.New(log, store, rt)

	ready := make(chan struct{})
	mgr.SetInitializedCallback(func() {
		close(ready)
		log.Info("all clusters initialized")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc := cfg.ToManagerConfig()
	log.WithFields(map[string]interface{}{
		"clusters": len(mc.Clusters),
		"sds":      mc.Sds != nil,
		"workers":  mc.WorkerCount,
	}).Info("loading cluster configuration")

	if err := mgr.Load(ctx, mc); err != nil {
		log.WithError(err).Fatal("failed to load cluster configuration")
	}

	go mgr.RunWorkers(ctx)

	var adminServer *http.Server
	if cfg.Admin.Enabled {
		adminHandler := admin.NewHandler(mgr, store.Registry(), log)
		adminServer = &http.Server{
			Addr:         cfg.Admin.Addr,
			Handler:      adminHandler.Router(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.WithField("addr", cfg.Admin.Addr).Info("starting admin HTTP server")
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("admin server failed")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error shutting down admin server")
		}
	}

	cancel()
	mgr.Shutdown()

	log.Info("cluster manager stopped gracefully")
}
