package main

import (
	"context"
	"fmt"
	"strconv"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/logger"
	"todoTracker/internal/media"
	"todoTracker/internal/service"

	"github.com/spf13/cobra"
)

type storeOpener func(ctx context.Context, cfg *config.Config) (service.Store, error)

type admin struct {
	open       storeOpener
	configPath string
	cfg        *config.Config
}

func newRootCmd(open storeOpener) *cobra.Command {
	a := &admin{open: open}

	root := &cobra.Command{
		Use:   "taskadmin",
		Short: "Administrative tasks for the todo tracker",
		Long: `taskadmin runs schema migrations and the bulk task actions against the
configured store. It reads the same config.yml and TODO_* variables as the server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadForAdmin(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return logger.Init(cfg.Logging.Development)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a config file")

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.bulkCmd("complete", "Mark tasks as completed", "marked as completed",
		(*service.TaskService).BulkMarkCompleted))
	root.AddCommand(a.bulkCmd("pending", "Mark tasks as pending", "marked as pending",
		(*service.TaskService).BulkMarkPending))
	root.AddCommand(a.bulkCmd("high-priority", "Set tasks to high priority", "set to high priority",
		(*service.TaskService).BulkSetHighPriority))
	root.AddCommand(a.deleteUserCmd())

	return root
}

// withStore opens the configured store for the duration of fn.
func (a *admin) withStore(ctx context.Context, migrate bool, fn func(service.Store) error) error {
	cfg := *a.cfg
	cfg.Database.AutoMigrate = migrate

	store, err := a.open(ctx, &cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (a *admin) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), false, func(store service.Store) error {
				switch s := store.(type) {
				case interface{ Migrate(context.Context) error }:
					if err := s.Migrate(cmd.Context()); err != nil {
						return err
					}
				case interface{ Migrate() error }:
					if err := s.Migrate(); err != nil {
						return err
					}
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "The in-memory store has no schema to migrate.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), false, func(store service.Store) error {
				s, ok := store.(interface{ Down(context.Context) error })
				if !ok {
					return fmt.Errorf("repository type %q does not support rolling back migrations", a.cfg.Repository.Type)
				}
				if err := s.Down(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back.")
				return nil
			})
		},
	})

	return cmd
}

type bulkAction func(s *service.TaskService, ctx context.Context, ids []int64) (int, error)

func (a *admin) bulkCmd(use, short, done string, action bulkAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <task-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), true, func(store service.Store) error {
				updated, err := action(service.NewTaskService(store.Tasks()), cmd.Context(), ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) %s.\n", updated, done)
				return nil
			})
		},
	}
}

func (a *admin) deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <user-id>",
		Short: "Delete a user together with their tasks, profile and avatar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			avatars, err := media.NewAvatarStore(a.cfg.Media.Root, a.cfg.Media.MaxAvatarBytes)
			if err != nil {
				return err
			}

			return a.withStore(cmd.Context(), true, func(store service.Store) error {
				accounts := service.NewAccountService(store.Users(), store.Profiles(),
					auth.NewPasswordHasher(a.cfg.Auth.BcryptCost), avatars)
				if err := accounts.DeleteUser(cmd.Context(), ids[0]); err != nil {
					if service.IsNotFound(err) {
						return fmt.Errorf("user %d does not exist", ids[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %d deleted.\n", ids[0])
				return nil
			})
		},
	}
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
