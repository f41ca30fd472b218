package dag

import (
	cnst "github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterGenerate registers the dag that writes the bootloader configuration.
// Every step depends on the one before, so they run one at a time and a failure stops the rest:
// load config, discover kernels, resolve the drive, write and verify the file, then optionally
// create the boot link and install the bootloader.
func RegisterGenerate(s *state.State, g *herd.Graph) error {
	if _, err := s.InstallTarget(); err != nil {
		return err
	}

	if err := s.LogIfErrorAndReturn(s.LoadConfigDagStep(g), "load config"); err != nil {
		return err
	}
	if err := s.LogIfErrorAndReturn(s.DiscoverKernelsDagStep(g, herd.WithDeps(cnst.OpLoadConfig)), "discover kernels"); err != nil {
		return err
	}
	if err := s.LogIfErrorAndReturn(s.ResolveDriveDagStep(g, herd.WithDeps(cnst.OpDiscoverKernels)), "resolve drive"); err != nil {
		return err
	}
	if err := s.LogIfErrorAndReturn(s.WriteConfigDagStep(g, herd.WithDeps(cnst.OpResolveDrive)), "write config"); err != nil {
		return err
	}
	if err := s.LogIfErrorAndReturn(s.VerifyOutputDagStep(g, herd.WithDeps(cnst.OpWriteConfig)), "verify output"); err != nil {
		return err
	}

	last := cnst.OpVerifyOutput
	if s.BootLink {
		if err := s.LogIfErrorAndReturn(s.CreateBootLinkDagStep(g, herd.WithDeps(last)), "boot link"); err != nil {
			return err
		}
		last = cnst.OpCreateBootLink
	}

	if s.InstallGrub2 || s.InstallExtlinux {
		return s.LogIfErrorAndReturn(s.InstallBootloaderDagStep(g, herd.WithDeps(last)), "install bootloader")
	}
	return nil
}
