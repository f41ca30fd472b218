package cmd

import (
	"context"

	cnst "github.com/kairos-io/bliss-boot/internal/constants"
	internalUtils "github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/internal/version"
	"github.com/kairos-io/bliss-boot/pkg/dag"
	"github.com/kairos-io/bliss-boot/pkg/state"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
)

var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write the configuration to `PATH` instead of the bootloader file name in the current directory",
	},
	&cli.BoolFlag{
		Name:    "force",
		Aliases: []string{"f"},
		Usage:   "overwrite the output file if it exists",
	},
	&cli.StringFlag{
		Name:    "drive",
		Aliases: []string{"d"},
		Usage:   "boot `DEVICE`, e.g. /dev/sda1 or UUID=..., skips the /etc/fstab lookup",
	},
	&cli.BoolFlag{
		Name:    "install-extlinux",
		Aliases: []string{"E"},
		Usage:   "install extlinux and write its firmware to the boot drive",
	},
	&cli.StringFlag{
		Name:  "extlinux-path",
		Value: cnst.ExtlinuxDir,
		Usage: "directory extlinux is installed into",
	},
	&cli.BoolFlag{
		Name:    "install-grub2",
		Aliases: []string{"G"},
		Usage:   "install grub2 to the boot drive",
	},
	&cli.BoolFlag{
		Name:    "only-bootloader",
		Aliases: []string{"B"},
		Usage:   "only install the bootloader, do not generate a configuration",
	},
	&cli.BoolFlag{
		Name:  "no-bootlink",
		Usage: "do not create the /boot/boot link",
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   cnst.ConfigFile,
		EnvVars: []string{"BLISS_BOOT_CONFIG"},
	},
	&cli.BoolFlag{
		Name:    "debug",
		EnvVars: []string{"BLISS_BOOT_DEBUG"},
	},
	&cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "print the steps that would run and exit",
		EnvVars: []string{"BLISS_BOOT_DRY_RUN"},
	},
}

var Commands = []*cli.Command{
	{
		Name:  "version",
		Usage: "version",
		Action: func(_ *cli.Context) error {
			v := version.Get()
			internalUtils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg(version.Name)
			return nil
		},
	},
}

// NewState builds the run state from the command line.
func NewState(c *cli.Context, fs vfs.FS) *state.State {
	s := state.New(fs)
	s.ConfigPath = c.String("config")
	s.Output = c.String("output")
	s.Force = c.Bool("force")
	s.Drive = c.String("drive")
	s.InstallGrub2 = c.Bool("install-grub2")
	s.InstallExtlinux = c.Bool("install-extlinux")
	s.ExtlinuxPath = c.String("extlinux-path")
	s.BootLink = !c.Bool("no-bootlink")
	return s
}

// Run generates the configuration and installs the bootloader as requested on the command line.
func Run(c *cli.Context) (err error) {
	internalUtils.SetLogger(c.Bool("debug"))

	v := version.Get()
	internalUtils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg(version.Name)

	if !internalUtils.IsRoot() && !c.Bool("dry-run") {
		return cnst.ErrNotRoot
	}

	s := NewState(c, vfs.OSFS)
	g := herd.DAG(herd.EnableInit)

	if c.Bool("only-bootloader") {
		err = dag.RegisterOnlyBootloader(s, g)
	} else {
		err = dag.RegisterGenerate(s, g)
	}
	if err != nil {
		return err
	}

	internalUtils.Log.Debug().Msg(s.WriteDAG(g))

	// Once we print the dag we can exit already
	if c.Bool("dry-run") {
		internalUtils.Log.Info().Msg(s.WriteDAG(g))
		return nil
	}

	err = g.Run(context.Background())
	internalUtils.Log.Debug().Msg(s.WriteDAG(g))
	if err != nil {
		return err
	}
	return s.Err(g)
}
