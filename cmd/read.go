package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var (
	readAddresses []string
	readOutput    string
)

var flashReadCmd = &cobra.Command{
	Use:   "flash-read",
	Short: "Read one or more address ranges from flash",
	Long: `Read one or more address ranges from flash and write the
concatenated result to --output (stdout if unset). Each --address is
"addr[:len]"; len defaults to one flash page (256 bytes) when omitted.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)

		cfg.OutputFile = readOutput
		for _, a := range readAddresses {
			r, err := orchestrator.ParseAddrRange(a)
			cobra.CheckErr(err)
			cfg.Addresses = append(cfg.Addresses, r)
		}

		runAction(cmd, cfg, orchestrator.ActionFlashRead)
	},
}

func init() {
	flashReadCmd.Flags().StringArrayVar(&readAddresses, "address", nil, "address range to read, addr[:len]; repeatable")
	flashReadCmd.Flags().StringVarP(&readOutput, "output", "o", "", "output file (stdout if unset)")
	rootCmd.AddCommand(flashReadCmd)
}
