package api

import (
	"sync"
	"time"

	"github.com/alex-pricope/campus-election-system/election"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/alex-pricope/campus-election-system/storage"
	"github.com/spf13/viper"
)

type Config struct {
	StorageConfig
	ServerConfig
	AuthConfig
	LiveConfig
}

type StorageConfig struct {
	Backend string

	// DSN is used by the postgres and sqlite backends.
	DSN string

	// Endpoint overrides the DynamoDB endpoint, e.g. for localstack.
	Endpoint             string
	Region               string
	TableNameUsers       string
	TableNameElections   string
	TableNameCandidacies string
	TableNameBallots     string
	TableNameGuards      string
}

type ServerConfig struct {
	Port int
}

type AuthConfig struct {
	JWTSecret              string
	TokenTTL               time.Duration
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminName     string
}

type LiveConfig struct {
	Interval time.Duration
}

var settingsOnce sync.Once

func ReadConfig() *Config {
	backend := getStringOrDefault("storage.backend", storage.BackendDynamo)

	conf := &Config{
		StorageConfig: StorageConfig{
			Backend:  backend,
			Endpoint: getStringOrDefault("storage.endpoint", ""),
			Region:   getStringOrDefault("storage.region", ""),
		},
		ServerConfig: ServerConfig{
			Port: getIntOrDefault("server.port", 8080),
		},
		AuthConfig: AuthConfig{
			JWTSecret:              getString("auth.jwtSecret"),
			TokenTTL:               getDurationOrDefault("auth.tokenTTL", 24*time.Hour),
			BootstrapAdminUsername: getStringOrDefault("auth.bootstrapAdmin.username", ""),
			BootstrapAdminPassword: getStringOrDefault("auth.bootstrapAdmin.password", ""),
			BootstrapAdminName:     getStringOrDefault("auth.bootstrapAdmin.name", "Administrator"),
		},
		LiveConfig: LiveConfig{
			Interval: getDurationOrDefault("live.interval", election.DefaultLiveInterval),
		},
	}

	if backend == storage.BackendDynamo {
		conf.TableNameUsers = getString("storage.tables.users")
		conf.TableNameElections = getString("storage.tables.elections")
		conf.TableNameCandidacies = getString("storage.tables.candidacies")
		conf.TableNameBallots = getString("storage.tables.ballots")
		conf.TableNameGuards = getString("storage.tables.guards")
	} else {
		conf.DSN = getString("storage.dsn")
	}

	settingsOnce.Do(func() {
		logging.Log.Printf("Reading settings! storage backend is %s", backend)
	})

	return conf
}

func getString(name string) string {
	if viper.IsSet(name) && viper.GetString(name) != "" {
		v := viper.GetString(name)
		logging.Log.Printf("found '%s' in viper", name)
		return v
	}
	logging.Log.Fatalf("required environment variable '%s' is missing", name)
	return ""
}

func getIntOrDefault(name string, def int) int {
	if viper.IsSet(name) {
		v := viper.GetInt(name)
		logging.Log.Printf("found '%s' in viper", name)
		return v
	}
	logging.Log.Printf("could not find '%s' in viper! Returning default", name)
	return def
}

func getStringOrDefault(name string, def string) string {
	if viper.IsSet(name) {
		v := viper.GetString(name)
		logging.Log.Printf("found '%s' in viper", name)
		return v
	}
	logging.Log.Printf("could not find '%s' in viper! Returning default", name)
	return def
}

func getDurationOrDefault(name string, def time.Duration) time.Duration {
	if viper.IsSet(name) {
		if v := viper.GetDuration(name); v > 0 {
			logging.Log.Printf("found '%s' in viper", name)
			return v
		}
		logging.Log.Warnf("'%s' is not a positive duration! Returning default", name)
		return def
	}
	logging.Log.Printf("could not find '%s' in viper! Returning default", name)
	return def
}
