package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func adminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "manage administrator accounts",
	}
	cmd.AddCommand(adminCreateCommand())
	return cmd
}

func adminCreateCommand() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:     "create",
		Short:   "create an administrator",
		Example: `mileage admin create --name "Office" --email office@example.com --password 's3cret-pass'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.svc.CreateAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", d.Email, d.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	cmd.Flags().StringVar(&password, "password", "", "login password, at least 8 characters (required)")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
