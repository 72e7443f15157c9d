package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"ipzy-gateway/internal/config"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ipzy-gateway",
		Short:        "Quiz flow gateway for the ipzy web app",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("port", "", "port to listen on (overrides config)")
	cmd.PersistentFlags().String("config", "config/config.yaml", "path to YAML config")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.AddCommand(NewStartCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

// viperForCmd binds a command's flags to IPZY_ environment variables, e.g. IPZY_CONFIG.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	v.SetEnvPrefix("IPZY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the YAML file named by --config and applies flag and environment overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	v := viperForCmd(cmd)
	cfg, err := config.Load(v.GetString("config"))
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if port := v.GetString("port"); port != "" {
		cfg.Server.Port = port
	}
	if level := v.GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if secret := v.GetString("session-secret"); secret != "" {
		cfg.Session.Secret = secret
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if strings.EqualFold(cfg.Log.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
