package state

import (
	"fmt"

	"github.com/kairos-io/bliss-boot/internal/constants"
	internalUtils "github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/config"
	"github.com/kairos-io/bliss-boot/pkg/drive"
	"github.com/kairos-io/bliss-boot/pkg/emit"
	"github.com/kairos-io/bliss-boot/pkg/installer"
	"github.com/kairos-io/bliss-boot/pkg/kernel"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// State is everything one run needs: the collaborators, what was asked on the command line,
// and what the steps found out so far. Steps run one after the other, each reading what the
// previous ones stored.
type State struct {
	FS      vfs.FS
	Runner  internalUtils.Runner
	Devices drive.BlockDevices

	ConfigPath      string
	Output          string // e.g. /boot/grub/grub.cfg, defaults to the bootloader file name in the current directory
	Force           bool
	Drive           string // e.g. /dev/sda1, wins over bootDrive from the config
	InstallGrub2    bool
	InstallExtlinux bool
	ExtlinuxPath    string
	OnlyBootloader  bool
	BootLink        bool // create /boot/boot pointing at /boot

	Config    *config.Config
	Catalog   *kernel.Catalog
	Emitter   emit.Emitter
	Installer *installer.Installer
	BootDrive schema.DriveDescriptor
	Kernels   []schema.BootEntry
	Default   int
	Target    schema.OutputTarget
}

// New returns a State working on the host.
func New(fs vfs.FS) *State {
	runner := internalUtils.SystemRunner{}
	return &State{
		FS:           fs,
		Runner:       runner,
		Devices:      drive.NewSystemBlockDevices(fs, runner),
		ConfigPath:   constants.ConfigFile,
		ExtlinuxPath: constants.ExtlinuxDir,
		BootLink:     true,
	}
}

// InstallTarget returns the bootloader to install, empty when none was requested.
func (s *State) InstallTarget() (string, error) {
	switch {
	case s.InstallGrub2 && s.InstallExtlinux:
		return "", constants.ErrConflictingInstallers
	case s.InstallGrub2:
		return constants.Grub2, nil
	case s.InstallExtlinux:
		return constants.Extlinux, nil
	}
	return "", nil
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// Err returns the first error recorded by the steps of g, in dag order.
func (s *State) Err(g *herd.Graph) error {
	for _, layer := range g.Analyze() {
		for _, op := range layer {
			if op.Error != nil {
				return fmt.Errorf("%s: %w", op.Name, op.Error)
			}
		}
	}
	return nil
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
	return e
}
