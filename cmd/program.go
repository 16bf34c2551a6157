package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var programInput string

var flashProgramCmd = &cobra.Command{
	Use:   "flash-program [FILE]",
	Short: "Authenticate (if --device-id is set), erase all, and program an S-Record image",
	Long: `The composite convenience action: validates the device-id if one is
configured, erases the entire flash array, then programs FILE (stdin
if omitted) as a Motorola S-Record image.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)

		cfg.InputFile = programInput
		if len(args) > 0 {
			cfg.InputFile = args[0]
		}

		runAction(cmd, cfg, orchestrator.ActionFlashProgram)
	},
}

func init() {
	flashProgramCmd.Flags().StringVarP(&programInput, "input", "i", "", "input S-Record file (stdin if unset, overridden by a positional FILE)")
	rootCmd.AddCommand(flashProgramCmd)
}
