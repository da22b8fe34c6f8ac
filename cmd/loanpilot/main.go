package main

import (
	"context"
	"log"
	"net/http"

	"github.com/pysugar/loanpilot/internal/api"
	"github.com/pysugar/loanpilot/internal/config"
	"github.com/pysugar/loanpilot/internal/engine"
	"github.com/pysugar/loanpilot/internal/version"
)

func main() {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stack, err := engine.Bootstrap(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize query engine: %v", err)
	}
	defer stack.Close()

	r := api.NewRouter(stack, api.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		AccessLog:      true,
	})

	addr := cfg.Addr()
	displayURL := addr
	if cfg.Host == "0.0.0.0" {
		displayURL = "<your-ip>:" + cfg.Port
	}

	log.Printf("🚀 LoanPilot %s starting on http://%s", version.String(), addr)
	log.Printf("🗄️ Database: %s", cfg.DBPath)
	log.Printf("🔌 Query API: http://%s/api/query", displayURL)
	log.Printf("🩺 Health: http://%s/api/health", displayURL)

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
