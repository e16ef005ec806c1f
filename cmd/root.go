/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/valpere/epubtran/internal/config"
)

var version = "0.3.0"

var (
	cfgFile string
	envFile string

	v      = config.NewViper()
	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "epubtran",
	Short: "EPUB and plain-text book translator",
	Long: `A CLI application that translates EPUB books sentence by sentence while
keeping their markup, then rebuilds the table of contents and spine.

Supported backends: Google Translate, DeepL, OpenAI-compatible APIs, Ollama (LLM), MyMemory

Settings come from flags, EPUBTRAN_* environment variables, epubtran.yaml
and built-in defaults, in that order.

Use "epubtran translate --help" for translation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		return setupLogger(v.GetString("log.level"), v.GetString("log.format"))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadEnv reads a dotenv file into the process environment without
// overriding variables that are already set. A missing default .env is fine.
func loadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func setupLogger(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(lvl)
	logger.SetOutput(os.Stderr)

	switch format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("log.format must be text or json, got %q", format)
	}
	return nil
}

// bindFlags binds a command's flags to config keys. It runs from PreRunE so
// that commands sharing a flag name do not steal each other's bindings.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./epubtran.yaml)")
	flags.StringVar(&envFile, "env-file", "", "Dotenv file to load (default ./.env)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-format", "text", "Log format: text or json")

	bindPersistent(flags, map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

func bindPersistent(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}
