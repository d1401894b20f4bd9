package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/factgate/internal/logging"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string
	workspace string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "factgate",
	Short: "factgate - claim fact reconciliation and quality gate",
	Long: `factgate reconciles the facts extracted from an insurance claim's documents
into one claim-level view, records every disagreement between documents, and
decides whether the claim may proceed to automated assessment.

Every decision is deterministic: the same extraction outputs and configuration
always produce the same report. factgate never edits extraction outputs.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "factgate %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.factgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (auto, json, console)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root holding claims/<id>/")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// A local .env may carry API keys; absence is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".factgate"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	bindEnv(viper.GetViper())

	readErr := viper.ReadInConfig()

	logCfg := logging.DefaultConfig()
	if v := viper.GetString("logging.level"); v != "" {
		logCfg.Level = v
	}
	if v := viper.GetString("logging.format"); v != "" {
		logCfg.Format = v
	}
	if v := viper.GetString("logging.output"); v != "" {
		logCfg.Output = v
	}
	if verbose && logLevel == "" && viper.GetString("logging.level") == "" {
		logCfg.Level = "debug"
	}
	logging.Configure(logCfg)

	if readErr == nil {
		logging.Default().Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, readErr)
	}
}

// bindEnv reads environment variables that match FACTGATE_* (nested keys use _)
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FACTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}
