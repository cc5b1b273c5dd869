package config

import (
	"github.com/dmitrijs2005/pricewatch/internal/flagx"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// parseEnv overlays environment variables named by the `env` struct tags.
// A dotenv file given with -e/-env is loaded first and must exist; otherwise
// ./.env is loaded when present. Variables already set in the process
// environment are never overwritten by the file.
func parseEnv(config *Config) {
	if path := flagx.EnvFile(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		panic(err)
	}
}
