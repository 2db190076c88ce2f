package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roadan/incubator-amaterasu/internal/config"
)

var (
	cfgFile string
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "amaterasu",
	Short: "Prepare and dispatch data pipeline actions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(viper.GetString("log.level"), viper.GetString("log.format"), os.Stderr)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", "file", used)
		}
	},
	SilenceUsage: true,
}

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := rootCmd.Execute(); err != nil {
		logger.Error("execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./amaterasu.yaml)")
	rootCmd.PersistentFlags().String("log.level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log.format", "text", "log format: text or json")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log.level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log.format"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("amaterasu")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AMATERASU")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind environment variables so Unmarshal sees them
	envVars := []string{
		"coordinator.callback_url",
		"coordinator.secret",
		"server.addr",
		"server.admin_username",
		"server.admin_password",
		"artifacts.tie_break",
		"artifacts.cache_dir",
		"download.dir",
		"download.timeout",
		"download.allow_private",
		"object_store.endpoint",
		"object_store.access_key",
		"object_store.secret_key",
		"object_store.region",
		"object_store.use_ssl",
		"staging.type",
		"staging.path",
		"staging.bucket",
		"staging.prefix",
		"launcher.type",
		"launcher.addr",
		"launcher.job_name",
		"launcher.work_dir",
		"database.path",
	}
	for _, key := range envVars {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			logger.Warn("failed to read config file", "error", err)
		}
	}
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(outW, handlerOpts))
}
