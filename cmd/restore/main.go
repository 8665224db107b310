package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/juju/clock"
	flag "github.com/spf13/pflag"

	in "lightning-app/scb/internal"
)

func main() {
	confPath := flag.String("config", in.ConfPath(), "path to the agent config file")
	out := flag.StringP("out", "o", "", "write the channel backup here instead of stdout")
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

	res := agent.Workflow.Restore(ctx)
	if res.Outcome != in.OutcomeFound {
		fmt.Fprintf(os.Stderr, "no channel backup restored: %s", res.Outcome)
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, " (%v)", res.Err)
		}
		fmt.Fprintln(os.Stderr)
		agent.Close()
		os.Exit(2)
	}
	if *out == "" {
		if _, err := os.Stdout.Write(res.SCB); err != nil {
			log.Fatalf("write: %v", err)
		}
		return
	}
	if err := os.WriteFile(*out, res.SCB, 0600); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	log.Printf("channel backup (%d bytes) written to %s", len(res.SCB), *out)
}
