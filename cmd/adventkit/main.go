package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/config"
	"github.com/adventkit/adventkit/internal/logging"
	"github.com/adventkit/adventkit/internal/schedule"
	"github.com/adventkit/adventkit/internal/state"
	"github.com/adventkit/adventkit/internal/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "adventkit",
		Short: "Door calendar state, scheduling and storage",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newRunCommand(),
		newExportCommand(),
		newImportCommand(),
		newLibraryCommand(),
		newResetCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("data-dir", defaults.GetString("data.dir"), "Data directory for calendar, library and media")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("user-id", defaults.GetString("user.id"), "Per-installation user identifier")
	cmd.PersistentFlags().Bool("strict-storage", defaults.GetBool("storage.strict"), "Propagate storage write failures instead of absorbing them")

	bindFlag(cmd, "data.dir", "data-dir")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "user.id", "user-id")
	bindFlag(cmd, "storage.strict", "strict-storage")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func contextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// app bundles the constructed core so each subcommand shares one wiring path.
type app struct {
	cfg     config.AppConfig
	logger  *zap.Logger
	store   *storage.Store
	manager *state.Manager
}

func buildApp() (*app, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	if appConfig.UserID == "" {
		appConfig.UserID, err = installationUserID(appConfig.DataDir)
		if err != nil {
			return nil, err
		}
	}

	store, err := storage.NewStore(storage.StoreConfig{
		RootDir: appConfig.DataDir,
		Strict:  appConfig.StrictStorage,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	manager, err := state.NewManager(state.ManagerConfig{
		Store:  store,
		UserID: appConfig.UserID,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if err := manager.Initialize(); err != nil {
		return nil, err
	}

	return &app{cfg: appConfig, logger: logger, store: store, manager: manager}, nil
}

// installationUserID returns the stable per-installation identifier, minting
// and persisting one on first run.
func installationUserID(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dataDir, "user_id")
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data), nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id.String()), 0o644); err != nil {
		return "", err
	}
	return id.String(), nil
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the unlock scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.logger.Sync() //nolint:errcheck

			scheduler, err := schedule.NewScheduler(schedule.SchedulerConfig{
				Manager:      application.manager,
				Notifier:     schedule.NewLogNotifier(application.logger),
				Logger:       application.logger,
				ReminderLead: time.Duration(application.cfg.NotifyLeadMinutes) * time.Minute,
				TickSpec:     application.cfg.SchedulerTick,
			})
			if err != nil {
				return err
			}

			scheduler.ScheduleReminders()
			scheduler.Tick()

			application.logger.Info("scheduler running",
				zap.String("tick", application.cfg.SchedulerTick))

			ctx, stop := contextWithSignals(cmd.Context())
			defer stop()
			if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newExportCommand() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active calendar as a bundle file",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.logger.Sync() //nolint:errcheck

			cal := application.manager.Calendar()
			data, filename, err := application.store.ExportCalendar(cal)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			target := filepath.Join(outputDir, filename)
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			if _, err := application.store.AddToLibrary(cal, calendar.LibraryItemTypeExported); err != nil {
				return err
			}

			cmd.Printf("Exported %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "out", ".", "Directory to write the bundle into")
	return cmd
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <bundle-file>",
		Short: "Import a calendar bundle and make it the active calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.logger.Sync() //nolint:errcheck

			imported, err := application.store.ImportCalendarFromFile(args[0])
			if err != nil {
				var importErr *storage.ImportError
				if errors.As(err, &importErr) {
					return errors.New(importErr.Message())
				}
				return err
			}

			application.manager.Reset(imported)
			if _, err := application.store.AddToLibrary(imported, calendar.LibraryItemTypeImported); err != nil {
				return err
			}

			cmd.Printf("Imported %q with %d doors\n", imported.Title, len(imported.Doors))
			return nil
		},
	}
}

func newLibraryCommand() *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage saved calendar snapshots",
	}

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List library snapshots, pinned first",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			items, err := application.store.ListLibraryItems()
			if err != nil {
				return err
			}
			for _, item := range items {
				pin := " "
				if item.IsPinned {
					pin = "*"
				}
				cmd.Printf("%s %s  %-10s %s  %s\n",
					pin, item.ID, item.Type, item.DateAdded.Format("2006-01-02"), item.Title)
			}
			return nil
		},
	})

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "pin <id>",
		Short: "Pin a library snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.store.SetLibraryItemPinned(args[0], true)
		},
	})

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "unpin <id>",
		Short: "Unpin a library snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.store.SetLibraryItemPinned(args[0], false)
		},
	})

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "load <id>",
		Short: "Replace the active calendar with a library snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			cal, err := application.store.LoadLibraryCalendar(args[0])
			if err != nil {
				return err
			}
			application.manager.Reset(cal)
			cmd.Printf("Loaded %q\n", cal.Title)
			return nil
		},
	})

	libraryCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a library snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			return application.store.DeleteLibraryItem(args[0])
		},
	})

	return libraryCmd
}

func newResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Replace the active calendar with a freshly generated default",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.logger.Sync() //nolint:errcheck

			generated, err := calendar.GenerateDaily(calendar.GeneratorConfig{
				Title:       application.cfg.CalendarTitle,
				GridColumns: application.cfg.CalendarColumns,
			}, time.Now(), application.cfg.CalendarDoors)
			if err != nil {
				return err
			}
			application.manager.Reset(generated)
			cmd.Printf("Reset to %q with %d doors\n", generated.Title, len(generated.Doors))
			return nil
		},
	}
}
