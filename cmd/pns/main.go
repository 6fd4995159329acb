// Package main is the pepu name service command.
//
// Usage:
//
//	pns serve --config pns.yaml
//	pns migrate
//	pns check teck
//	pns verify <txHash> <wallet>
//
// Every setting can also be given as a PNS_* environment variable
// (e.g. PNS_PAYMENT_TREASURY) or in a .env file in the working directory.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pepu-name-service/internal/config"
	"pepu-name-service/internal/logging"
)

var (
	v       = config.NewViper()
	cfgFile string
	envFile string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "pns",
	Short:         "Register .pepu names paid for on Pepe Unchained",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnvFile(envFile)

		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of KEY=VALUE lines loaded into the environment")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("rpc-url", "", "JSON-RPC endpoint")
	rootCmd.PersistentFlags().String("postgres-dsn", "", "PostgreSQL connection string")
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("chain.rpc_url", rootCmd.PersistentFlags().Lookup("rpc-url"))
	_ = v.BindPFlag("store.postgres_dsn", rootCmd.PersistentFlags().Lookup("postgres-dsn"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			os.Stderr.WriteString("pns: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}

// loadEnvFile loads environment variables from path if it exists.
// Variables already set in the environment win.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}
