package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/SscSPs/procure_to_pay/internal/core/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/SscSPs/procure_to_pay/pkg/database"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func migrateCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.StorageDriver != config.StorageDriverPostgres {
				return errors.New("migrate requires STORAGE_DRIVER=postgres")
			}
			return applyMigrations(logger, cfg)
		},
	}
}

func applyMigrations(logger *slog.Logger, cfg *config.Config) error {
	logger.Info("Running database migrations...", slog.String("path", cfg.MigrationsPath))
	applied, err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if applied {
		logger.Info("Database migrations applied successfully.")
	} else {
		logger.Info("No new migrations to apply.")
	}
	return nil
}

func closeFiscalYearCmd(logger *slog.Logger) *cobra.Command {
	var (
		year  int
		actor string
	)

	cmd := &cobra.Command{
		Use:   "close-fiscal-year",
		Short: "Lock every budget line of a fiscal year",
		Long: `Lock every budget line of a fiscal year against further commitments,
releases and expenditures. The actor must hold the finance manager or
super admin role.

Examples:
  p2p_backend close-fiscal-year --year 2025 --actor 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApplication(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer app.Close()

			locked, err := app.services.Ledger.CloseFiscalYear(cmd.Context(), year, actor)
			if err != nil {
				return fmt.Errorf("failed to close fiscal year %d: %w", year, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fiscal year %d closed, %d budget line(s) locked\n", year, locked)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "fiscal year to close")
	cmd.Flags().StringVar(&actor, "actor", "", "ID of the user closing the year")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func createAdminCmd(logger *slog.Logger) *cobra.Command {
	var req dto.CreateUserRequest
	var approvalLimit string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first super admin user",
		Long: `Create a super admin user. The HTTP API only lets existing admins create
users, so a fresh installation starts here.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, err := decimal.NewFromString(approvalLimit)
			if err != nil {
				return fmt.Errorf("invalid --approval-limit %q: %w", approvalLimit, err)
			}
			req.ApprovalLimit = limit

			app, err := loadApplication(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer app.Close()

			base := services.BaseService{
				TxManager: app.repos.TxManager,
				Audit:     app.deps.Audit,
				Notifier:  app.deps.Notifier,
				Clock:     app.deps.Clock,
			}
			user, err := services.BootstrapAdmin(cmd.Context(), base, app.repos.UserRepo, req)
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.UserID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.DepartmentID, "department", "", "department ID")
	cmd.Flags().StringVar(&approvalLimit, "approval-limit", "0", "approval limit for the admin")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
