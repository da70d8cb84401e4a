// Command entitycache exercises an entity cache described by a YAML
// configuration file.
//
//	entitycache simulate --config cache.yaml --keys 5000 --reads 200000 --workers 16
//	entitycache config validate --config cache.yaml
//	entitycache config init > cache.yaml
package main

import (
	"os"

	"github.com/agentuity/go-entitycache/config"
	"github.com/agentuity/go-entitycache/env"
	"github.com/agentuity/go-entitycache/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

const configEnv = "ENTITYCACHE_CONFIG"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "entitycache",
		Short:         "Run and inspect entity cache configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if fn, _ := cmd.Flags().GetString("env-file"); fn != "" {
				return env.LoadEnvFile(fn)
			}
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.String("log-level", "", "log level: trace, debug, info, warn, error or none (env "+env.LogLevelEnv+")")
	flags.String("log-file", "", "also write debug logs to this file")
	flags.String("config", "", "path to the YAML configuration (env "+configEnv+")")
	flags.String("env-file", "", "load ENTITYCACHE_* variables from this file")

	root.AddCommand(newSimulateCommand(), newConfigCommand())
	return root
}

// loadConfig loads the configuration named by --config or ENTITYCACHE_CONFIG.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(env.FlagOrEnv(cmd, "config", configEnv, ""))
}

// newLogger builds the console logger. The configuration's log_level applies
// when neither the flag nor the environment sets one.
func newLogger(cmd *cobra.Command, cfg *config.Config) (logger.Logger, func() error, error) {
	level := env.LogLevel(cmd)
	if env.FlagOrEnv(cmd, "log-level", env.LogLevelEnv, "") == "" && cfg.LogLevel != "" {
		level, _ = logger.ParseLevel(cfg.LogLevel)
	}
	log := logger.NewConsoleLogger(level)
	fn, _ := cmd.Flags().GetString("log-file")
	if fn == "" {
		return log, func() error { return nil }, nil
	}
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening log file %s", fn)
	}
	log.SetSink(f, logger.LevelDebug)
	return log, f.Close, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.NewConsoleLogger(logger.LevelError).Error("%s", err)
		os.Exit(1)
	}
}
