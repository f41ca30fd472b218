package dag

import (
	"fmt"

	cnst "github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterOnlyBootloader registers the dag that installs the bootloader without touching its
// configuration.
func RegisterOnlyBootloader(s *state.State, g *herd.Graph) error {
	target, err := s.InstallTarget()
	if err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("%w: --only-bootloader needs --install-grub2 or --install-extlinux", cnst.ErrInvalidConfig)
	}

	s.OnlyBootloader = true
	if err := s.LogIfErrorAndReturn(s.LoadConfigDagStep(g), "load config"); err != nil {
		return err
	}
	if err := s.LogIfErrorAndReturn(s.ResolveDriveDagStep(g, herd.WithDeps(cnst.OpLoadConfig)), "resolve drive"); err != nil {
		return err
	}
	return s.LogIfErrorAndReturn(s.InstallBootloaderDagStep(g, herd.WithDeps(cnst.OpResolveDrive)), "install bootloader")
}
