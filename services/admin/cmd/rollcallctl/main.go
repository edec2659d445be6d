package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rollcall/pkg/bus"
	"rollcall/pkg/config"
	"rollcall/pkg/db"
	"rollcall/services/admin"
	"rollcall/services/attendance"
	"rollcall/services/auth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rollcallctl",
		Short:         "Maintenance utility for the rollcall attendance service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newAdminCommand())
	cmd.AddCommand(newStudentsCommand())
	cmd.AddCommand(newSessionsCommand())
	cmd.AddCommand(newEventsCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator account operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newAdminSeedCommand())
	return cmd
}

func newAdminSeedCommand() *cobra.Command {
	var in admin.AdminInput

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the administrator account or reset its password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			orm, err := db.OpenORM(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}
			defer func() { _ = db.CloseORM(orm) }()

			accounts, err := auth.NewAccountStore(orm)
			if err != nil {
				return err
			}
			hasher, err := auth.NewHasher(cfg.BcryptCost)
			if err != nil {
				return err
			}

			res, err := admin.SeedAdmin(ctx, accounts, hasher, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "admin account %q ready (id %d)\n", res.Account.Username, res.Account.ID)
			if res.Generated {
				fmt.Fprintf(out, "generated password: %s\n", res.Password)
				fmt.Fprintln(out, "change it after the first login")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "admin", "Administrator username")
	cmd.Flags().StringVar(&in.Email, "email", "admin@school.edu", "Administrator email")
	cmd.Flags().StringVar(&in.FullName, "full-name", "System Administrator", "Display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password to set; generated when empty")
	return cmd
}

func newStudentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Roster operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newStudentsImportCommand())
	return cmd
}

func newStudentsImportCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import students from a YAML roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			roster, err := admin.ParseRoster(f)
			if err != nil {
				return err
			}

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := attendance.NewStore(pool)
			if err != nil {
				return err
			}
			n, err := admin.ImportRoster(ctx, store, roster)
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d students\n", n, len(roster.Students))
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the roster YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSessionsPruneCommand())
	return cmd
}

func newSessionsPruneCommand() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessions, err := auth.NewSessionStore(pool)
			if err != nil {
				return err
			}
			n, err := sessions.Prune(ctx, time.Now().Add(-grace))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired sessions\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&grace, "older-than", 0, "Only delete sessions expired for at least this long")
	return cmd
}

func newEventsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Event stream operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newEventsTailCommand())
	return cmd
}

func newEventsTailCommand() *cobra.Command {
	var (
		subject string
		durable string
	)

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print rollcall events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is not configured")
			}

			events, err := bus.New(cfg.NATSURL)
			if err != nil {
				return fmt.Errorf("connect nats: %w", err)
			}
			defer events.Close()

			out := cmd.OutOrStdout()
			sub, err := events.Subscribe(ctx, subject, durable, func(_ context.Context, subj string, data []byte) error {
				_, err := fmt.Fprintf(out, "%s %s\n", subj, data)
				return err
			})
			if err != nil {
				return fmt.Errorf("subscribe: %w", err)
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", bus.AllSubjects, "Subject filter")
	cmd.Flags().StringVar(&durable, "durable", "rollcallctl-tail", "Durable consumer name")
	return cmd
}
