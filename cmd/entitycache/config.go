package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/agentuity/go-entitycache/config"
	"github.com/agentuity/go-entitycache/tui"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect cache configurations",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration, environment overrides included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, tui.Bold("configuration is valid"))
			tui.Table(out, []string{"Setting", "Value"}, describe(cfg))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, _ := cmd.Flags().GetString("output")
			if fn == "" {
				return config.Default().Save(cmd.OutOrStdout())
			}
			f, err := os.Create(fn)
			if err != nil {
				return errors.Wrapf(err, "creating %s", fn)
			}
			defer f.Close()
			if err := config.Default().Save(f); err != nil {
				return err
			}
			return f.Close()
		},
	}
	initCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	cmd.AddCommand(validate, initCmd)
	return cmd
}

func describe(cfg *config.Config) [][]string {
	name := cfg.Name
	if name == "" {
		name = tui.Muted("(generated)")
	}
	itemPolicy := cfg.DefaultItemPolicy.Kind
	if cfg.DefaultItemPolicy.TTL > 0 {
		itemPolicy += " " + cfg.DefaultItemPolicy.TTL.String()
	}
	store := cfg.Store.Type
	switch cfg.Store.Type {
	case config.StoreRedis:
		store += " " + cfg.Store.RedisURL
	case config.StoreSQLite:
		store += " " + cfg.Store.SQLitePath
	}
	return [][]string{
		{"name", name},
		{"max items", strconv.Itoa(cfg.MaxItems)},
		{"eviction factor", strconv.FormatFloat(cfg.EvictionFactor, 'f', -1, 64)},
		{"replacement", cfg.Replacement},
		{"item policy", itemPolicy},
		{"store", store},
	}
}
