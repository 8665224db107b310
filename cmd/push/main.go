package main

import (
	"context"
	"log"

	"github.com/juju/clock"
	flag "github.com/spf13/pflag"

	in "lightning-app/scb/internal"
)

func main() {
	confPath := flag.String("config", in.ConfPath(), "path to the agent config file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := in.LoadConfig(*confPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := in.ConfigureLogging(cfg.Log); err != nil {
		log.Fatalf("logging: %v", err)
	}
	agent, err := in.NewAgent(ctx, cfg, clock.WallClock, nil)
	if err != nil {
		log.Fatalf("agent: %v", err)
	}
	defer agent.Close()

	// Failures are logged by the workflow itself.
	agent.Workflow.PushChannelBackup(ctx)
}
