package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var statusReadCmd = &cobra.Command{
	Use:   "status-read",
	Short: "Read and print the device's status word",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)
		runAction(cmd, cfg, orchestrator.ActionStatusRead)
	},
}

var statusClearCmd = &cobra.Command{
	Use:   "status-clear",
	Short: "Clear the device's status word",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)
		runAction(cmd, cfg, orchestrator.ActionStatusClear)
	},
}

var versionReadCmd = &cobra.Command{
	Use:   "version-read",
	Short: "Read and print the boot ROM version string",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)
		runAction(cmd, cfg, orchestrator.ActionVersionRead)
	},
}

func init() {
	rootCmd.AddCommand(statusReadCmd)
	rootCmd.AddCommand(statusClearCmd)
	rootCmd.AddCommand(versionReadCmd)
}
