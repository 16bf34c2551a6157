package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var writeInput string

var flashWriteCmd = &cobra.Command{
	Use:   "flash-write [FILE]",
	Short: "Program flash from a Motorola S-Record image",
	Long:  "Program flash from a Motorola S-Record image read from FILE (stdin if omitted).",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)

		cfg.InputFile = writeInput
		if len(args) > 0 {
			cfg.InputFile = args[0]
		}

		runAction(cmd, cfg, orchestrator.ActionFlashWrite)
	},
}

func init() {
	flashWriteCmd.Flags().StringVarP(&writeInput, "input", "i", "", "input S-Record file (stdin if unset, overridden by a positional FILE)")
	rootCmd.AddCommand(flashWriteCmd)
}
