package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/app"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/audit"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/store"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/database"
	"github.com/ovaphlow/pitchfork/service-guardian/pkg/utilities"
)

func openDB() (*sqlx.DB, error) {
	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return db, nil
}

func logger() *zap.SugaredLogger {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return lg.Sugar()
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := store.EnsureSchema(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func auditCmd() *cobra.Command {
	var (
		all      bool
		pageSize int
	)
	cmd := &cobra.Command{
		Use:   "audit [user-id...]",
		Short: "Audit members and print one JSON report per line",
		Example: `  guardianctl audit u1 u2
  guardianctl audit --all --page-size 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass user ids or --all, not both")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tables, err := config.LoadTables(cfg.TablesPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			a := app.New(db, app.Options{
				Tables:           tables,
				Clock:            clockwork.NewRealClock(),
				Location:         loc,
				AuditParallelism: cfg.AuditParallelism,
			}, logger())

			enc := json.NewEncoder(cmd.OutOrStdout())
			emit := func(page []audit.Report) error {
				for _, r := range page {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			}
			if all {
				return a.Audit.AuditAll(cmd.Context(), pageSize, emit)
			}
			out, err := a.Audit.AuditUsers(cmd.Context(), args)
			if err != nil {
				return err
			}
			return emit(out)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "audit every member")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "members per batch with --all")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with GUARDIAN_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != auth.RoleMember && role != auth.RoleAdmin {
				return fmt.Errorf("role must be %q or %q", auth.RoleMember, auth.RoleAdmin)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, clockwork.NewRealClock())
			if err != nil {
				return err
			}
			raw, err := tokens.Issue(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "subject user id")
	cmd.Flags().StringVar(&role, "role", auth.RoleMember, "member or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
