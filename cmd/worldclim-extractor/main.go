// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the worldclim-extractor CLI, which
// samples WorldClim v2.1 climate layers at the coordinates of a CSV or
// Excel table.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/worldclim-extractor/internal/logger"
	"github.com/pdiddy/worldclim-extractor/internal/worldclim"
	"github.com/pdiddy/worldclim-extractor/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// log is configured in PersistentPreRunE once flags and config are read.
var log = logger.Discard()

var rootCmd = &cobra.Command{
	Use:   "worldclim-extractor",
	Short: "Sample WorldClim climate layers at table coordinates",
	Long: `worldclim-extractor reads a table of longitude/latitude points and adds
one column per layer of a WorldClim v2.1 variable: 12 monthly layers for
tmin, tmax, tavg, prec, srad, wind, vapr and elev, or 19 bioclimatic
layers for bio.

Layers are streamed straight out of the published zip archives with HTTP
range requests; nothing is downloaded in full or cached between runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log = logger.New(cfg.Log.Level, cfg.Log.Env)
		if used := viper.ConfigFileUsed(); used != "" {
			log.Debugf("using config file %s", used)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./worldclim-extractor.yaml or ~/.config/worldclim-extractor/worldclim-extractor.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("worldclim-extractor")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "worldclim-extractor"))
		}
	}

	setDefaults(viper.GetViper())

	viper.SetEnvPrefix("WORLDCLIM_EXTRACTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Reading config file:", err)
		}
	}
}

// setDefaults registers the value of every configuration key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("extraction.base_url", worldclim.DefaultBaseURL)
	v.SetDefault("extraction.lon_column", "Longitude")
	v.SetDefault("extraction.lat_column", "Latitude")
	v.SetDefault("extraction.allow_even_window", false)
	v.SetDefault("extraction.remote.timeout", 60*time.Second)
	v.SetDefault("extraction.remote.user_agent", "worldclim-extractor/"+version)
	v.SetDefault("extraction.remote.max_retries", 5)
	v.SetDefault("extraction.remote.allowed_extensions", []string{".zip", ".tif"})
	v.SetDefault("extraction.remote.disable_read_dir", true)
	v.SetDefault("extraction.remote.use_head", true)
	v.SetDefault("extraction.remote.chunk_size", 512<<10)
	v.SetDefault("extraction.remote.headers_dir", "")

	v.SetDefault("history.dir", defaultHistoryDir())
	v.SetDefault("history.disabled", false)
	v.SetDefault("history.max_results", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "development")
}

func defaultHistoryDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "worldclim-extractor")
	}
	return ".worldclim-extractor"
}

// loadConfig decodes the merged defaults, config file, environment and
// bound flags.
func loadConfig() (types.AppConfig, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (types.AppConfig, error) {
	var cfg types.AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printFailure("%v", err)
		os.Exit(1)
	}
}
