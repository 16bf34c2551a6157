package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var idValidateCmd = &cobra.Command{
	Use:   "id-validate",
	Short: "Authenticate against the device using --device-id",
	Long:  "Authenticate against the device using the device-id supplied via --device-id and --device-id-addr.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)
		runAction(cmd, cfg, orchestrator.ActionIDValidate)
	},
}

func init() {
	rootCmd.AddCommand(idValidateCmd)
}
