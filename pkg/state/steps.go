package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	cnst "github.com/kairos-io/bliss-boot/internal/constants"
	internalUtils "github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/config"
	"github.com/kairos-io/bliss-boot/pkg/drive"
	"github.com/kairos-io/bliss-boot/pkg/emit"
	"github.com/kairos-io/bliss-boot/pkg/installer"
	"github.com/kairos-io/bliss-boot/pkg/kernel"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/spectrocloud-labs/herd"
)

// LoadConfigDagStep loads the configuration and picks the emitter for the configured bootloader.
func (s *State) LoadConfigDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpLoadConfig, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		if _, err := s.InstallTarget(); err != nil {
			return err
		}

		c, err := config.Load(s.FS, s.ConfigPath)
		if err != nil {
			return err
		}
		s.Config = c

		s.Emitter, err = emit.New(c.Bootloader)
		if err != nil {
			return err
		}

		internalUtils.Log.Info().Str("config", c.Path).Str("bootloader", c.Bootloader).Msg("Configuration loaded")
		return nil
	}))...)
}

// DiscoverKernelsDagStep matches the kernels on disk with the configured ones and finds the default.
func (s *State) DiscoverKernelsDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpDiscoverKernels, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		if s.Catalog == nil {
			s.Catalog = kernel.NewCatalog(s.FS)
		}

		if err := s.Catalog.LoadDiscoveredKernels(s.Config.Settings.KernelDirectory); err != nil {
			return err
		}
		s.Catalog.LoadConfiguredKernels(s.Config.Kernels)
		s.Kernels = s.Catalog.Reconcile()

		if !s.Catalog.AnyReconciled() {
			return fmt.Errorf("%w: found %v", cnst.ErrNoKernelsReconciled, s.Catalog.Discovered())
		}

		var err error
		s.Default, err = s.Catalog.FindDefaultPosition()
		if err != nil {
			return err
		}

		internalUtils.Log.Info().Int("kernels", len(s.Kernels)).Str("default", s.Kernels[s.Default].Version).Msg("Kernels reconciled")
		return nil
	}))...)
}

// ResolveDriveDagStep resolves the boot drive. Nothing is resolved when neither the configuration
// format nor an installer needs it.
func (s *State) ResolveDriveDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpResolveDrive, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		target, err := s.InstallTarget()
		if err != nil {
			return err
		}

		needed := target != ""
		if !s.OnlyBootloader && s.Emitter != nil && s.Emitter.NeedsDrive(s.Config.Settings) {
			needed = true
		}
		if !needed {
			internalUtils.Log.Debug().Str("bootloader", s.Config.Bootloader).Msg("Boot drive not needed")
			return nil
		}

		d := s.Drive
		if d == "" {
			d = s.Config.BootDrive
		}

		r := drive.NewResolver(s.FS, s.Devices)
		s.BootDrive, err = r.Resolve(drive.Options{
			Drive:        d,
			WholeDiskZfs: s.Config.Settings.WholeDiskZfs,
			ZfsDataset:   s.Config.Settings.ZfsBootDataset,
			Grub2Syntax:  !s.OnlyBootloader && s.Config.Bootloader == cnst.Grub2,
		})
		return err
	}))...)
}

// WriteConfigDagStep renders the configuration in memory and writes it in one go.
func (s *State) WriteConfigDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpWriteConfig, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		if s.Catalog == nil || !s.Catalog.AnyReconciled() {
			return cnst.ErrNoKernelsReconciled
		}

		data, err := emit.Generate(s.Emitter, emit.Input{
			Kernels:  s.Kernels,
			Default:  s.Default,
			Drive:    s.BootDrive,
			Settings: s.Config.Settings,
		})
		if err != nil {
			return err
		}

		s.Target = schema.OutputTarget{Path: s.Output, Overwrite: s.Force}
		if s.Target.Path == "" {
			s.Target.Path = s.Emitter.DefaultFileName()
		}

		return emit.Write(s.FS, s.Target, data)
	}))...)
}

func (s *State) VerifyOutputDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpVerifyOutput, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		return emit.VerifyOutput(s.FS, s.Target.Path)
	}))...)
}

// CreateBootLinkDagStep makes /boot/boot point at /boot, so paths starting with /boot work both
// from the running system and from the bootloader, which sees the boot partition as its root.
func (s *State) CreateBootLinkDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCreateBootLink, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		if s.Config.Settings.WholeDiskZfs {
			internalUtils.Log.Debug().Msg("Whole disk zfs, not creating the boot link")
			return nil
		}

		if _, err := s.FS.Lstat(cnst.BootLink); err == nil {
			internalUtils.Log.Debug().Str("link", cnst.BootLink).Msg("Boot link already there")
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if !internalUtils.Exists(s.FS, cnst.BootDir) {
			internalUtils.Log.Warn().Str("dir", cnst.BootDir).Msg("No boot directory, not creating the boot link")
			return nil
		}

		if err := s.FS.Symlink(".", cnst.BootLink); err != nil {
			return fmt.Errorf("creating %s: %w", cnst.BootLink, err)
		}
		internalUtils.Log.Info().Str("link", cnst.BootLink).Msg("Boot link created")
		return nil
	}))...)
}

func (s *State) InstallBootloaderDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpInstallBootloader, append(opts, herd.FatalOp, herd.WithCallback(func(_ context.Context) error {
		target, err := s.InstallTarget()
		if err != nil {
			return err
		}

		if s.Installer == nil {
			s.Installer = installer.New(s.FS, s.Runner)
		}
		if s.ExtlinuxPath != "" {
			s.Installer.ExtlinuxPath = s.ExtlinuxPath
		}
		s.Installer.UI = s.Config.Settings.Extlinux.UI

		return s.Installer.Install(target, s.BootDrive)
	}))...)
}
