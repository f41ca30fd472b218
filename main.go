package main

import (
	"os"

	"github.com/kairos-io/bliss-boot/internal/cmd"
	internalUtils "github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/internal/version"
	"github.com/urfave/cli/v2"
)

// Generate the bootloader configuration for the kernels in /boot/kernels.
func main() {
	app := cli.NewApp()
	app.Name = version.Name
	app.Usage = "generates grub2, extlinux and lilo configurations from the installed kernels"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "bliss-boot authors"}}
	app.Flags = cmd.Flags
	app.Commands = cmd.Commands
	app.Action = cmd.Run

	if err := app.Run(os.Args); err != nil {
		internalUtils.Log.Error().Err(err).Msg("bliss-boot failed")
		os.Exit(1)
	}
}
