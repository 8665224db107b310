package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	in "lightning-app/scb/internal"
)

func main() {
	confPath := flag.String("config", in.ConfPath(), "path to the agent config file")
	noPoll := flag.Bool("no-poll", false, "disable the periodic push fallback")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := in.LoadConfig(*confPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := in.ConfigureLogging(cfg.Log); err != nil {
		log.Fatalf("logging: %v", err)
	}
	logger := loggo.GetLogger("scb.agent")

	agent, err := in.NewAgent(ctx, cfg, clock.WallClock, nil)
	if err != nil {
		log.Fatalf("agent: %v", err)
	}
	defer agent.Close()

	w, err := in.NewBackupWorker(in.WorkerConfig{
		Workflow:  agent.Workflow,
		Poll:      !*noPoll,
		Subscribe: cfg.Transport != in.TransportNone,
	})
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	logger.Infof("channel backup agent running (platform=%q network=%s transport=%s)", cfg.Platform, cfg.Network, cfg.Transport)

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(agent.Metrics)
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           in.NewStatusRouter(reg, agent.Workflow, cfg.Network),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("status listener on %s: %v", cfg.MetricsAddr, err)
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	cancel()
	w.Kill()
	if err := w.Wait(); err != nil {
		logger.Errorf("backup worker stopped: %v", err)
	}
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}
}
