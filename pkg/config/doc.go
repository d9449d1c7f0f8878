// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv, which reads optional .env files, and
// github.com/caarlos0/env/v11, which parses the environment into structs by
// their env tags. Each config type is parsed once and cached.
//
//	if err := config.LoadEnv(".env.local"); err != nil {
//		log.Fatal(err)
//	}
//
//	var cfg session.Config
//	config.MustLoad(&cfg)
//
// Tests that change the environment can call ForceReload or ResetCache.
package config
