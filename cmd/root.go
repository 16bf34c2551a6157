// Package cmd is the cobra CLI surface on top of orchestrator. It owns
// flag parsing, config loading, and cobra.CheckErr termination; no
// wire-protocol or S-Record logic lives here.
package cmd

import (
	"time"

	"github.com/m16c-tools/m16cflash/config"
	"github.com/m16c-tools/m16cflash/orchestrator"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "m16cflash",
	Short: "Serial flasher for Renesas M16C microcontrollers",
	Long: `m16cflash talks to the M16C boot ROM's serial bootstrap protocol:
clock validation, baud negotiation, device-id authentication, and
page-granular flash read/program/erase, loading images in Motorola
S-Record format.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

// Flags shared by every subcommand that talks to the device. Defaults
// come from the config file at baseConfig time; a flag the user
// actually set on the command line always wins.
var (
	flagDevice            string
	flagBaudRate          uint32
	flagTimeout           time.Duration
	flagDeviceID          string
	flagDeviceIDAddr      uint32
	flagUnsafe            bool
	flagNoClockValidation bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagDevice, "device", "d", "", "serial device path (e.g. /dev/ttyUSB0)")
	pf.Uint32Var(&flagBaudRate, "baud-rate", 0, "negotiated baud rate after the initial 9600 handshake")
	pf.DurationVar(&flagTimeout, "timeout", 0, "serial read timeout")
	pf.StringVar(&flagDeviceID, "device-id", "", "up to seven colon-separated hex bytes, e.g. ae:23:3a:dd:ea:32")
	pf.Uint32Var(&flagDeviceIDAddr, "device-id-addr", 0x0FFFDF, "flash address the device-id check is verified against")
	pf.BoolVar(&flagUnsafe, "unsafe", false, "force the baud rate and clear status if clock validation fails, instead of aborting")
	pf.BoolVarP(&flagNoClockValidation, "no-clock-validation", "n", false, "skip the clock-validate handshake entirely")
}

// baseConfig merges config-file defaults with whatever flags the user
// set, the way adapter/root.go's PersistentPreRun calls
// config.Initialize before any subcommand runs.
func baseConfig(cmd *cobra.Command) (orchestrator.Config, error) {
	defaults, err := config.Load()
	if err != nil {
		return orchestrator.Config{}, err
	}

	flags := cmd.Flags()
	cfg := orchestrator.Config{
		Device:            defaults.Device,
		BaudRate:          uint32(defaults.BaudRate),
		Timeout:           time.Duration(defaults.Timeout) * time.Second,
		DeviceIDAddr:      defaults.DeviceIDAddr,
		Unsafe:            flagUnsafe,
		NoClockValidation: flagNoClockValidation,
	}

	deviceID := defaults.DeviceID
	if flags.Changed("device") {
		cfg.Device = flagDevice
	}
	if flags.Changed("baud-rate") {
		cfg.BaudRate = flagBaudRate
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("device-id") {
		deviceID = flagDeviceID
	}
	if flags.Changed("device-id-addr") {
		cfg.DeviceIDAddr = flagDeviceIDAddr
	}

	id, err := config.ParseDeviceID(deviceID)
	if err != nil {
		return orchestrator.Config{}, err
	}
	cfg.DeviceID = id

	return cfg, nil
}

// runAction opens a connection, runs the single action to completion,
// and closes the connection — the shape every subcommand below shares.
func runAction(cmd *cobra.Command, cfg orchestrator.Config, action string) {
	cfg.Actions = []string{action}

	o, err := orchestrator.New(cfg)
	if err != nil {
		cobra.CheckErr(err)
	}
	defer o.Close()

	if err := o.Run(cmd.Context()); err != nil {
		cobra.CheckErr(err)
	}
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
