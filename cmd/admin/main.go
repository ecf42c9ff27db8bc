package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"zazoom-be/internal/admin"
	"zazoom-be/internal/auth"
	"zazoom-be/internal/config"
	"zazoom-be/internal/db"
	"zazoom-be/internal/delivery"
	"zazoom-be/internal/logger"
	"zazoom-be/internal/order"
	"zazoom-be/internal/utils"

	"filippo.io/age"
	"github.com/spf13/cobra"
)

type adminService interface {
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
	UpdateDriverStatus(ctx context.Context, driverID, status string) error
	Export(ctx context.Context, w io.Writer, recipients []age.Recipient) (*admin.BurnReport, error)
	Wipe(ctx context.Context, cutoff time.Time) (int64, error)
}

// opener connects the service lazily so hash-password works offline.
type opener func() (adminService, func(), error)

func openDatabase() (adminService, func(), error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	database, err := db.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	orderRepo := order.NewRepository(database)
	svc := admin.NewService(
		order.NewService(orderRepo, nil),
		delivery.NewRepository(database),
		orderRepo,
		nil,
		admin.Credentials{},
	)
	return svc, func() {
		database.Close()
		logger.Sync()
	}, nil
}

func main() {
	if err := newRootCmd(openDatabase).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:          "zazoom-admin",
		Short:        "Operator commands for the zazoom backend",
		SilenceUsage: true,
	}
	root.AddCommand(
		newOrderStatusCmd(open),
		newDriverStatusCmd(open),
		newBurnCmd(open),
		newHashPasswordCmd(),
	)
	return root
}

func newOrderStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "order-status <order-id> <status>",
		Short: "Force an order into a status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			ctx := utils.SetAdminContext(cmd.Context(), "cli", utils.RoleAdmin)
			if err := svc.UpdateOrderStatus(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func newDriverStatusCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "driver-status <driver-id> <status>",
		Short: "Force a driver into available, busy or offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			if err := svc.UpdateDriverStatus(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "driver %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func newBurnCmd(open opener) *cobra.Command {
	var (
		recipients []string
		output     string
		wipe       bool
	)
	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Export every order encrypted to age recipients, optionally wiping them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, err := admin.ParseRecipients(recipients)
			if err != nil {
				return err
			}
			if output == "" {
				output = utils.GenerateExportName("burn", ".zst.age")
			}

			svc, done, err := open()
			if err != nil {
				return err
			}
			defer done()

			ctx := utils.SetAdminContext(cmd.Context(), "cli", utils.RoleAdmin)
			report, err := writeExport(ctx, svc, output, rs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d orders (%d bytes) to %s\n", report.Orders, report.Bytes, output)

			if !wipe || report.Cutoff == nil {
				return nil
			}
			n, err := svc.Wipe(ctx, *report.Cutoff)
			if err != nil {
				return fmt.Errorf("wipe failed, export kept at %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wiped %d orders\n", n)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&recipients, "recipient", "r", nil, "age public key to encrypt to (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "export file (default burn-<timestamp>.zst.age)")
	cmd.Flags().BoolVar(&wipe, "wipe", false, "delete the exported orders once the file is on disk")
	return cmd
}

// writeExport writes the export to a new file and syncs it to disk. A
// partial file is removed, which is safe because nothing has been wiped yet.
func writeExport(ctx context.Context, svc adminService, path string, rs []age.Recipient) (*admin.BurnReport, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	report, err := svc.Export(ctx, f, rs)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return report, nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
