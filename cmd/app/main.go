package main

import (
	"flag"
	"log"
	"os"

	"TickFuse/internal/di"
	"TickFuse/pkg/config"
)

func main() {
	if err := run(); err != nil {
		log.Printf("tickfuse: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	symbol := flag.String("symbol", "", "override traded symbol")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}
	if *symbol != "" {
		cfg.Engine.Symbol = *symbol
	}

	log.Printf("tickfuse: env=%s backend=%s symbol=%s",
		cfg.Environment, cfg.Backend.Type, cfg.Engine.Symbol)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}

	// blocks until signal or fatal engine error
	return app.Run()
}
