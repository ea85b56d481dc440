package main

import (
	"os"

	"github.com/ethanbaker/coach/internal/api"
	"github.com/ethanbaker/coach/pkg/utils"
)

// Start the development orchestration server
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	api.Start(cfg)
}
