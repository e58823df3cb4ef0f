package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"github.com/simp-lee/backoffice/internal/app"
	"github.com/simp-lee/backoffice/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// Variables already set in the environment win over the file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("failed to load env file: ", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal("failed to create app: ", err)
	}

	if err := a.Run(); err != nil {
		log.Fatal("server error: ", err)
	}
}
