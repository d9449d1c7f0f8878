package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}

	defaultEnvLoaded sync.Once
)

// LoadEnv reads the given .env files into the process environment. Variables
// already set are left alone, and earlier files win over later ones. With no
// paths it reads ./.env.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnv, err)
	}
	return nil
}

// Load parses environment variables into v according to its env tags.
// The first successful result for each type is cached and returned by later
// calls, so callers can load the same config from several places cheaply.
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	defaultEnvLoaded.Do(func() {
		// a missing .env is fine
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := reflect.TypeFor[T]()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}
	return parse(key, v)
}

// ForceReload parses v again and replaces the cached copy.
func ForceReload[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	return parse(reflect.TypeFor[T](), v)
}

func parse[T any](key reflect.Type, v *T) error {
	var out T
	if err := env.Parse(&out); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = out
	*v = out
	return nil
}

// MustLoad is Load for configs the program cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// ResetCache forgets every loaded config.
func ResetCache() {
	cacheMu.Lock()
	cache = map[reflect.Type]any{}
	cacheMu.Unlock()
}
