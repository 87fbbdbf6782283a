package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/contentapi/internal/cli/ui"
	"github.com/conduit-lang/contentapi/internal/config"
)

// configFile is the subset of config.Config that init writes
type configFile struct {
	LimitMax      int  `yaml:"limit_max"`
	SearchEnabled bool `yaml:"search_enabled"`
	Server        struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		APIPrefix string `yaml:"api_prefix"`
	} `yaml:"server"`
	Store struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn,omitempty"`
		SiteFile string `yaml:"site_file"`
	} `yaml:"store"`
	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		RedisAddr string `yaml:"redis_addr,omitempty"`
	} `yaml:"cache"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func defaultConfigFile() configFile {
	var f configFile
	f.LimitMax = 20
	f.SearchEnabled = true
	f.Server.Host = "localhost"
	f.Server.Port = 8000
	f.Server.APIPrefix = "/api"
	f.Store.Driver = config.DriverMemory
	f.Store.SiteFile = "site.yml"
	f.Cache.Backend = config.CacheNone
	f.Cache.TTL = (5 * time.Minute).String()
	f.Log.Level = "info"
	f.Log.Format = "json"
	return f
}

type initOptions struct {
	output   string
	defaults bool
	force    bool
}

func newInitCommand() *cobra.Command {
	opts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter contentapi.yml",
		Long: `Ask for the store, cache and port and write a config file.

Examples:
  contentapi init
  contentapi init --defaults
  contentapi init --output deploy/contentapi.yml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", config.FileName+".yml", "Where to write the config")
	cmd.Flags().BoolVar(&opts.defaults, "defaults", false, "Write the defaults without prompting")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	if _, err := os.Stat(opts.output); err == nil && !opts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", opts.output)
	}

	f := defaultConfigFile()
	if !opts.defaults {
		if err := askConfig(&f); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	ui.WriteSuccess(cmd.OutOrStdout(), "Wrote "+opts.output, color.NoColor)
	if f.Store.Driver != config.DriverMemory {
		fmt.Fprintln(cmd.OutOrStdout(), "Next: contentapi import")
	}
	return nil
}

func askConfig(f *configFile) error {
	if err := survey.AskOne(&survey.Input{
		Message: "Site file:",
		Default: f.Store.SiteFile,
	}, &f.Store.SiteFile, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	if err := survey.AskOne(&survey.Select{
		Message: "Store:",
		Options: []string{config.DriverMemory, config.DriverSQLite, config.DriverPgx},
		Default: f.Store.Driver,
		Description: func(value string, index int) string {
			switch value {
			case config.DriverMemory:
				return "serve the site file directly"
			case config.DriverSQLite:
				return "SQLite database file"
			default:
				return "PostgreSQL"
			}
		},
	}, &f.Store.Driver); err != nil {
		return err
	}

	if f.Store.Driver != config.DriverMemory {
		def := "content.db"
		if f.Store.Driver == config.DriverPgx {
			def = "postgres://localhost:5432/content?sslmode=disable"
		}
		if err := survey.AskOne(&survey.Input{
			Message: "Database DSN:",
			Default: def,
		}, &f.Store.DSN, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}

	if err := survey.AskOne(&survey.Select{
		Message: "Response cache:",
		Options: []string{config.CacheNone, config.CacheMemory, config.CacheRedis},
		Default: f.Cache.Backend,
	}, &f.Cache.Backend); err != nil {
		return err
	}
	if f.Cache.Backend == config.CacheRedis {
		f.Cache.RedisAddr = "localhost:6379"
		if err := survey.AskOne(&survey.Input{
			Message: "Redis address:",
			Default: f.Cache.RedisAddr,
		}, &f.Cache.RedisAddr); err != nil {
			return err
		}
	}

	var port string
	if err := survey.AskOne(&survey.Input{
		Message: "Port:",
		Default: strconv.Itoa(f.Server.Port),
	}, &port, survey.WithValidator(validatePort)); err != nil {
		return err
	}
	f.Server.Port, _ = strconv.Atoi(port)
	return nil
}

func validatePort(ans interface{}) error {
	s, _ := ans.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
