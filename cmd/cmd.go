package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var RootCmd = &cobra.Command{
	Use:   "mileage",
	Short: "vehicle mileage expense settlement",
	Long: `mileage records business trips driven in private vehicles and settles
them monthly into fuel and depreciation reimbursements.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional yaml config file")

	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
	RootCmd.AddCommand(adminCommand())
	RootCmd.AddCommand(importCommand())
	RootCmd.AddCommand(settleCommand())
	RootCmd.AddCommand(exportCommand())
}
