package main

import (
	"fmt"
	"os"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	v          = viper.New()
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "assetpicker",
	Short: "Crawl directory listings for PNG assets and serve a picker session",
	Long: `assetpicker discovers PNG images under a static server's auto-generated
directory listings with a bounded breadth-first crawl.

  crawl   write the images found under one or more folders to CSV or JSON
  serve   expose the host page's menu toggle and asset picker over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load(".env")

		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		logging.Setup(logging.Options{Verbose: loaded.Verbose, LogFile: loaded.LogFile})
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	d := config.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	pf.String("page-url", d.PageURL, "URL of the host page; folder paths resolve against it")
	pf.String("public-root", d.PublicRoot, "page-relative root of the asset folders")
	pf.Int("max-folders", d.MaxFolders, "maximum folders visited per crawl")
	pf.Duration("timeout", d.Timeout, "per-request timeout (0 disables)")
	pf.String("user-agent", d.UserAgent, "User-Agent header for listing requests and probes")
	pf.String("log-file", d.LogFile, "also write JSON logs to this rotated file")
	pf.BoolP("verbose", "v", d.Verbose, "enable debug logging")

	bindFlags(rootCmd, map[string]string{
		"page_url":    "page-url",
		"public_root": "public-root",
		"max_folders": "max-folders",
		"timeout":     "timeout",
		"user_agent":  "user-agent",
		"log_file":    "log-file",
		"verbose":     "verbose",
	}, true)

	rootCmd.AddCommand(crawlCmd, serveCmd)
}

// bindFlags binds config keys to the named flags of cmd.
func bindFlags(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}
