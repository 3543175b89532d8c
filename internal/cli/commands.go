package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"circulation-backend/internal/config"
	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/infrastructure/migrations"
	"circulation-backend/internal/infrastructure/sqlite"
	"circulation-backend/pkg/container"
)

// ErrViolationsFound makes `reconcile` exit non-zero when the ledger disagrees with itself.
var ErrViolationsFound = errors.New("ledger has conservation violations")

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if cfg.Store.Driver == config.DriverSQLite {
				// NewDB migrates on open.
				db, err := sqlite.NewDB(cfg.Store.SQLitePath)
				if err != nil {
					return err
				}
				defer db.Close()
			} else {
				dbConfig, err := config.LoadDatabaseConfig()
				if err != nil {
					return err
				}
				if err := migrations.RunPostgres(dbConfig.DSN()); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", cfg.Store.Driver)
			return nil
		},
	}
}

func newItemCommand(a *app) *cobra.Command {
	item := &cobra.Command{
		Use:   "item",
		Short: "Register, resize and inspect items",
	}

	var (
		registerID     string
		registerCopies int
	)
	register := &cobra.Command{
		Use:   "register",
		Short: "Register a new item with N copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				created, err := c.CirculationService.RegisterItem(ctx, model.RegisterItemRequest{
					ItemID:      registerID,
					CopiesTotal: registerCopies,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), created)
			})
		},
	}
	register.Flags().StringVar(&registerID, "id", "", "item id (generated when empty)")
	register.Flags().IntVar(&registerCopies, "copies", 1, "number of copies")

	var resizeCopies int
	resize := &cobra.Command{
		Use:   "resize ITEM_ID",
		Short: "Change the number of copies an item has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				resized, err := c.CirculationService.ResizeItem(ctx, id, model.ResizeItemRequest{CopiesTotal: resizeCopies})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), resized)
			})
		},
	}
	resize.Flags().IntVar(&resizeCopies, "copies", 0, "new copies_total")
	_ = resize.MarkFlagRequired("copies")

	availability := &cobra.Command{
		Use:   "availability ITEM_ID",
		Short: "Show total, available, open and lifetime loan counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid item id: %w", err)
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				snapshot, err := c.CirculationService.GetAvailability(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot)
			})
		},
	}

	item.AddCommand(register, resize, availability)
	return item
}

func newLoanCommand(a *app) *cobra.Command {
	loan := &cobra.Command{
		Use:   "loan",
		Short: "Administrative loan overrides",
	}

	forceClose := &cobra.Command{
		Use:   "force-close LOAN_ID",
		Short: "Close an open loan without a fine and release its copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid loan id: %w", err)
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				closed, err := c.CirculationService.ForceClose(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), closed)
			})
		},
	}

	var force bool
	del := &cobra.Command{
		Use:   "delete LOAN_ID",
		Short: "Delete a loan record; open loans need --force",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid loan id: %w", err)
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				if err := c.CirculationService.DeleteLoan(ctx, id, force); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "loan %s deleted\n", id)
				return nil
			})
		},
	}
	del.Flags().BoolVar(&force, "force", false, "delete an open loan and release its copy")

	loan.AddCommand(forceClose, del)
	return loan
}

func newReconcileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check every item's counter against its open loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				result, err := c.CirculationService.Reconcile(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
				if len(result.Violations) > 0 {
					return fmt.Errorf("%w: %d item(s)", ErrViolationsFound, len(result.Violations))
				}
				return nil
			})
		},
	}
}

func newFinesCommand(a *app) *cobra.Command {
	fines := &cobra.Command{
		Use:   "fines",
		Short: "Fine maintenance",
	}

	fines.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Persist the accrued fine on every overdue loan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container.Container) error {
				updated, err := c.CirculationService.RefreshOverdueFines(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d loan(s) updated\n", updated)
				return nil
			})
		},
	})
	return fines
}
