package cmd

import (
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var eraseAddresses []string

var flashEraseCmd = &cobra.Command{
	Use:   "flash-erase",
	Short: "Erase one or more flash blocks",
	Long:  `Erase the flash blocks containing each --address (erase operates on whole blocks; len only counts toward the address range check).`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)

		for _, a := range eraseAddresses {
			r, err := orchestrator.ParseAddrRange(a)
			cobra.CheckErr(err)
			cfg.Addresses = append(cfg.Addresses, r)
		}

		runAction(cmd, cfg, orchestrator.ActionFlashErase)
	},
}

var flashEraseAllCmd = &cobra.Command{
	Use:   "flash-erase-all",
	Short: "Erase the entire flash array",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := baseConfig(cmd)
		cobra.CheckErr(err)
		runAction(cmd, cfg, orchestrator.ActionFlashEraseAll)
	},
}

func init() {
	flashEraseCmd.Flags().StringArrayVar(&eraseAddresses, "address", nil, "block address to erase; repeatable")
	rootCmd.AddCommand(flashEraseCmd)
	rootCmd.AddCommand(flashEraseAllCmd)
}
