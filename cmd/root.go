package cmd

import (
	"bytes"
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/spigell/placement-checker/internal/config"
	"github.com/spigell/placement-checker/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	app               = "placement-checker"
	envPrefix         = "PLACEMENT"
	defaultConfigFile = app + ".yaml"
)

var (
	// Used for flags.
	cfgFile string
	envFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "placement-checker checks whether internship responsibilities match an approved work placement role",
		Long: `placement-checker compares the responsibilities of an internship posting with the
requirements of an approved role using sentence embeddings and reports whether the
similarity reaches the configured threshold.`,
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is placement-checker.yaml in current directory)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "a dotenv file with API keys and overrides (default is .env in current directory if present)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command must work even with a broken config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if err := loadEnvFile(envFile); err != nil {
		log.Fatal(err)
	}

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// loadEnvFile loads variables from a dotenv file without overriding the environment.
// A missing default .env file is not an error.
func loadEnvFile(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// readConfig reads the built-in defaults and merges the user config file over them.
// Without an explicit path, a missing placement-checker.yaml leaves the defaults in place.
func readConfig(v *viper.Viper, path string) error {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(config.DefaultYAML)); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		path = defaultConfigFile
	}

	v.SetConfigFile(path)
	return v.MergeInConfig()
}

func getConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

func newLogger() *zap.Logger {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	return logger
}
