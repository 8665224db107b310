package main

import (
	"log"

	flag "github.com/spf13/pflag"

	in "lightning-app/scb/internal"
)

func main() {
	confPath := flag.String("config", in.ConfPath(), "path to the agent config file")
	network := flag.String("network", "", "network whose wallet.db to delete (defaults to the configured one)")
	flag.Parse()

	cfg, err := in.LoadConfig(*confPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := in.ConfigureLogging(cfg.Log); err != nil {
		log.Fatalf("logging: %v", err)
	}
	n := *network
	if n == "" {
		n = cfg.Network
	}
	files := in.NewDaemonFiles(cfg.LndDir, cfg.Network, nil)
	if err := files.DeleteWalletDB(n); err != nil {
		log.Fatalf("delete wallet: %v", err)
	}
	log.Printf("%s wallet.db cleared under %s", n, cfg.LndDir)
}
