// Package config loads typed configuration structs from the environment.
//
// Structs declare their variables with `env` tags (caarlos0/env) and are
// loaded with the generic Load:
//
//	type redisConfig struct {
//		URL string `env:"REDIS_URL,required"`
//	}
//
//	cfg, err := config.Load[redisConfig]()
//
// The first Load in a process reads the local .env file if one exists.
// Each struct type is parsed once and cached, so every caller across the
// application sees the same values.
package config
