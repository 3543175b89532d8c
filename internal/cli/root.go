// Package cli implements circulationctl, the operator tool for the ledger:
// schema migration, item administration, overrides and reconciliation.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"circulation-backend/internal/config"
	"circulation-backend/pkg/container"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// app carries what every subcommand needs. build is swapped in tests.
type app struct {
	v     *viper.Viper
	build func(*config.Config) (*container.Container, error)
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand assembles the command tree with a fresh viper instance.
func NewRootCommand() *cobra.Command {
	a := &app{
		v:     viper.New(),
		build: container.NewContainerWithConfig,
	}

	root := &cobra.Command{
		Use:           "circulationctl",
		Short:         "Administer the circulation ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.readConfigFile()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, toml or json)")
	flags.String("driver", "", "store driver: postgres or sqlite")
	flags.String("sqlite-path", "", "sqlite database file")
	flags.Bool("redis", false, "connect to Redis (enables override notifications)")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("store.driver", flags.Lookup("driver"))
	_ = a.v.BindPFlag("store.sqlite_path", flags.Lookup("sqlite-path"))
	_ = a.v.BindPFlag("redis.enabled", flags.Lookup("redis"))

	a.v.SetEnvPrefix("CIRCULATIONCTL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(
		newMigrateCommand(a),
		newItemCommand(a),
		newLoanCommand(a),
		newReconcileCommand(a),
		newFinesCommand(a),
	)
	return root
}

func (a *app) readConfigFile() error {
	path := a.v.GetString("config")
	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

// loadConfig starts from the environment (same variables as the API) and
// applies flag, CIRCULATIONCTL_* and config file overrides on top.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if driver := a.v.GetString("store.driver"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := a.v.GetString("store.sqlite_path"); path != "" {
		cfg.Store.SQLitePath = path
	}
	cfg.Redis.Disabled = !a.v.GetBool("redis.enabled")
	if rate := a.v.GetString("circulation.fine_per_day"); rate != "" {
		d, err := decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("circulation.fine_per_day: %w", err)
		}
		cfg.Circulation.FinePerDay = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withContainer builds the dependency graph, runs fn and tears it down.
func (a *app) withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	c, err := a.build(cfg)
	if err != nil {
		return err
	}
	defer c.Cleanup()

	return fn(cmd.Context(), c)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
