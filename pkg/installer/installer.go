package installer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/drive"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Installer puts a bootloader on the boot drive.
type Installer struct {
	FS     vfs.FS
	Runner utils.Runner

	// ExtlinuxPath is where extlinux installs itself and where its modules are copied to.
	ExtlinuxPath string
	// SyslinuxDir holds the menu modules and the mbr images.
	SyslinuxDir string
	// UI is the menu module copied next to extlinux, e.g. menu.c32.
	UI string
}

func New(fileSystem vfs.FS, runner utils.Runner) *Installer {
	return &Installer{
		FS:           fileSystem,
		Runner:       runner,
		ExtlinuxPath: constants.ExtlinuxDir,
		SyslinuxDir:  constants.SyslinuxDir,
		UI:           constants.DefaultExtlinuxUI,
	}
}

// Install installs the named bootloader on the disk holding d.
func (i *Installer) Install(bootloader string, d schema.DriveDescriptor) error {
	if d.DevicePath == "" {
		return fmt.Errorf("%w: no device to install %s to, use --drive", constants.ErrNoMatchingDrive, bootloader)
	}

	switch bootloader {
	case constants.Grub2:
		return i.InstallGrub2(d)
	case constants.Extlinux:
		return i.InstallExtlinux(d)
	default:
		return fmt.Errorf("%w: cannot install %q", constants.ErrUnsupportedBootloader, bootloader)
	}
}

func (i *Installer) InstallGrub2(d schema.DriveDescriptor) error {
	disk := drive.ParentDisk(d.DevicePath)
	utils.Log.Info().Str("disk", disk).Msg("Installing grub2")

	out, err := i.Runner.Run("grub-install", disk)
	if err != nil {
		utils.Log.Debug().Str("output", out).Msg("grub-install")
		return fmt.Errorf("installing grub2 to %s: %w", disk, err)
	}

	utils.Log.Info().Str("disk", disk).Msg("grub2 installed")
	return nil
}

// InstallExtlinux installs extlinux into ExtlinuxPath, copies the menu modules and writes the
// matching mbr image to the disk. On gpt the legacy bios bootable attribute of the boot
// partition is set first.
func (i *Installer) InstallExtlinux(d schema.DriveDescriptor) error {
	disk := drive.ParentDisk(d.DevicePath)

	var firmware string
	switch d.Layout {
	case constants.LayoutGPT:
		firmware = filepath.Join(i.SyslinuxDir, filepath.Base(constants.ExtlinuxGPTFw))
	case constants.LayoutMSDOS:
		firmware = filepath.Join(i.SyslinuxDir, filepath.Base(constants.ExtlinuxMBRFw))
	default:
		return fmt.Errorf("%w: %s (%s)", constants.ErrUnknownLayout, disk, d.Layout)
	}

	utils.Log.Info().Str("path", i.ExtlinuxPath).Str("disk", disk).Msg("Installing extlinux")

	if err := utils.CreateIfNotExists(i.FS, i.ExtlinuxPath); err != nil {
		return fmt.Errorf("creating %s: %w", i.ExtlinuxPath, err)
	}
	if _, err := i.Runner.Run("extlinux", "--install", i.ExtlinuxPath); err != nil {
		return fmt.Errorf("installing extlinux to %s: %w", i.ExtlinuxPath, err)
	}

	for _, module := range utils.UniqueSlice([]string{i.UI, constants.LibUtil}) {
		if err := i.copyModule(module); err != nil {
			return err
		}
	}

	if d.Layout == constants.LayoutGPT {
		if err := i.setLegacyBootable(disk, d.PartitionNumber); err != nil {
			return err
		}
	}

	return i.WriteFirmware(firmware, disk)
}

func (i *Installer) copyModule(name string) error {
	src := filepath.Join(i.SyslinuxDir, name)
	dst := filepath.Join(i.ExtlinuxPath, name)

	data, err := i.FS.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", constants.ErrMissingTool, src)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := i.FS.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copying %s: %w", name, err)
	}

	utils.Log.Debug().Str("from", src).Str("to", dst).Msg("Copied extlinux module")
	return nil
}

func (i *Installer) setLegacyBootable(disk string, partition int) error {
	if partition == schema.NoPartition {
		return fmt.Errorf("%w: %s has no partition number", constants.ErrUnknownLayout, disk)
	}
	n := strconv.Itoa(partition)

	if _, err := i.Runner.Run("sgdisk", disk, "--attributes="+n+":set:2"); err != nil {
		return fmt.Errorf("setting legacy bios bootable flag on %s partition %s: %w", disk, n, err)
	}
	out, err := i.Runner.Run("sgdisk", disk, "--attributes="+n+":show")
	if err != nil {
		return fmt.Errorf("reading attributes of %s partition %s: %w", disk, n, err)
	}

	utils.Log.Info().Str("disk", disk).Str("partition", n).Str("attributes", out).Msg("Legacy bios bootable flag set")
	return nil
}

// WriteFirmware copies the boot code area of image to the start of disk. The partition table
// after it is left untouched.
func (i *Installer) WriteFirmware(image, disk string) error {
	src, err := i.FS.Open(image)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", constants.ErrMissingTool, image)
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", image, err)
	}
	defer src.Close()

	code := make([]byte, constants.FirmwareSize)
	n, err := io.ReadFull(src, code)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("reading %s: %w", image, err)
	}

	dst, err := i.FS.OpenFile(disk, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("opening %s: %w", disk, err)
	}
	defer dst.Close()

	if _, err := dst.WriteAt(code[:n], 0); err != nil {
		return fmt.Errorf("writing firmware to %s: %w", disk, err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", disk, err)
	}

	utils.Log.Info().Str("firmware", image).Str("disk", disk).Str("size", humanize.Bytes(uint64(n))).Msg("Firmware written")
	return nil
}
