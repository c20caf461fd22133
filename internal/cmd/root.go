// Package cmd implements the sbatchman CLI: expansion, lifecycle control,
// query, and bundle import/export over pkg/expansion, pkg/lifecycle,
// pkg/query, and pkg/bundle.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/3leaps/sbatchman/pkg/apperrors"
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "none", BuildDate: "unknown"}

// SetVersionInfo is called once from main with values baked in at build
// time via -ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootHomeOverride string
	logger           *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "sbatchman",
	Short:         "Configuration expansion and job lifecycle manager for HPC batch schedulers",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       versionInfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
}

func init() {
	cobra.OnInitialize(setDefaults)
	rootCmd.PersistentFlags().StringVar(&rootHomeOverride, "root", "", "sbatchman root directory (default $SBATCHMAN_HOME or $HOME/.sbatchman)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-profile", "console", "log output: console or structured (json)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.profile", rootCmd.PersistentFlags().Lookup("log-profile"))
}

// setDefaults seeds viper with the config keys sbatchman reads, so every
// key has a sane value even with no config file present.
func setDefaults() {
	viper.SetEnvPrefix("SBATCHMAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.profile", "console")
	viper.SetDefault("lifecycle.poll_interval", "2s")
	viper.SetDefault("lifecycle.max_unknown_ticks", 10)
}

func initLogger() error {
	var cfg zap.Config
	if viper.GetString("logging.profile") == "structured" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(viper.GetString("logging.level"))); err != nil {
		return apperrors.New(apperrors.KindConfigParse, "initLogger", "", err)
	}
	cfg.Level = level

	l, err := cfg.Build()
	if err != nil {
		return apperrors.New(apperrors.KindConfigIO, "initLogger", "", err)
	}
	logger = l
	return nil
}

// Execute runs the CLI, reporting a spec §6-shaped exit code on failure.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		kind, ok := apperrors.KindOf(err)
		if !ok {
			fmt.Fprintln(os.Stderr, "sbatchman:", err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "sbatchman:", err)
		return apperrors.ExitCode(kind)
	}
	return 0
}
