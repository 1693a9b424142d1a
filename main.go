// @title Campus Election System API
// @version 1.0
// @description Backend API for campus elections: lifecycle, candidacies, ballots and results

// @securityDefinitions.apikey BearerToken
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.
package main

import (
	"os"
	"strings"

	_ "github.com/alex-pricope/campus-election-system/docs"

	"github.com/alex-pricope/campus-election-system/api"
	"github.com/alex-pricope/campus-election-system/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	flags := pflag.NewFlagSet("campus-election-system", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to the config file (default ./config.yaml)")
	flags.Int("port", 8080, "HTTP port when running locally")
	flags.String("storage", "", "storage backend: dynamodb, postgres or sqlite")
	_ = flags.Parse(os.Args[1:])

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Load env
	viper.SetConfigType("yaml")
	if *configPath != "" {
		viper.SetConfigFile(*configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./")
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic("Failed to read config file: " + err.Error())
	}
	if f := flags.Lookup("port"); f.Changed {
		_ = viper.BindPFlag("server.port", f)
	}
	if f := flags.Lookup("storage"); f.Changed {
		_ = viper.BindPFlag("storage.backend", f)
	}

	logging.BootstrapLogger(viper.GetString("log.level"), viper.GetString("log.format"))

	// Read config
	config := api.ReadConfig()

	// Start the service (inside the lambda)
	service := api.NewServer(config)
	service.Start()
}
