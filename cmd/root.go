// Package cmd wires the mediaenrich command line.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"mediaenrich/internal/application/common/logging"
	"mediaenrich/internal/application/common/slogger"
	"mediaenrich/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//nolint:gochecknoglobals // cobra command state
var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra root command
	Use:   "mediaenrich",
	Short: "Enrichment worker for social media content",
	Long: `MediaEnrich claims enrichment jobs from PostgreSQL and writes back
multimodal embeddings and video transcripts for Instagram posts.

Each worker serves a single client and processes one job at a time.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() { //nolint:gochecknoinits // cobra command registration
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (initConfig -> bindLogFlags -> rootCmd).
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, text)")
}

func initConfig() error {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env file: %v\n", err)
	}

	v, err := newViper(cfgFile)
	if err != nil {
		return err
	}
	if err := bindLogFlags(v); err != nil {
		return err
	}

	loaded, err := config.Decode(v)
	if err != nil {
		return err
	}
	cfg = loaded

	return slogger.Configure(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

func newViper(file string) (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)
	if err := config.BindEnv(v); err != nil {
		return nil, fmt.Errorf("bind environment: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

func bindLogFlags(v *viper.Viper) error {
	for key, flag := range map[string]string{"log.level": "log-level", "log.format": "log-format"} {
		f := rootCmd.PersistentFlags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s flag: %w", flag, err)
		}
	}
	return nil
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	return cfg
}
