package drive

import (
	"fmt"
	"strings"

	"github.com/deniswernert/go-fstab"
	"github.com/gofrs/uuid"
	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Resolver turns the boot device specifier into something a bootloader understands.
// Nothing is cached, every call looks at the host again.
type Resolver struct {
	FS        vfs.FS
	Devices   BlockDevices
	FstabFile string
}

func NewResolver(fs vfs.FS, devices BlockDevices) *Resolver {
	return &Resolver{FS: fs, Devices: devices, FstabFile: constants.FstabFile}
}

// Options tune a single Resolve call.
type Options struct {
	// Drive skips the fstab lookup. A value starting with "(" is taken as grub2 syntax as is.
	Drive        string
	WholeDiskZfs bool
	ZfsDataset   string
	// Grub2Syntax computes the grub2 `set root` value, which fails for shapes grub2 has no name for.
	Grub2Syntax bool
}

// ResolveBootFstabEntry returns the fstab entry mounted exactly on /boot.
func (r *Resolver) ResolveBootFstabEntry() (*fstab.Mount, error) {
	f, err := r.FS.Open(r.FstabFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", constants.ErrNoBootEntry, err)
	}
	defer f.Close()

	mounts, err := fstab.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", r.FstabFile, err)
	}

	for _, m := range mounts {
		if m == nil {
			continue
		}
		if m.File == constants.BootDir || m.File == constants.BootDir+"/" {
			utils.Log.Debug().Str("spec", m.Spec).Str("type", m.VfsType).Msg("Found /boot in fstab")
			return m, nil
		}
	}

	return nil, constants.ErrNoBootEntry
}

// MapIdentifierToDevice resolves UUID= and PARTUUID= specifiers, anything else is returned as is.
func (r *Resolver) MapIdentifierToDevice(specifier string) (string, error) {
	kind, value, found := strings.Cut(specifier, "=")
	if !found || (kind != KindUUID && kind != KindPartUUID) {
		return specifier, nil
	}

	// fstab may carry uppercase uuids, udev and blkid report the canonical lowercase form
	if u, err := uuid.FromString(value); err == nil {
		value = u.String()
	}

	dev, err := r.Devices.Lookup(kind, value)
	if err != nil {
		return "", fmt.Errorf("looking up %s: %w", specifier, err)
	}
	if dev == "" {
		return "", fmt.Errorf("%w: %s", constants.ErrNoMatchingDrive, specifier)
	}

	utils.Log.Debug().Str("specifier", specifier).Str("device", dev).Msg("Mapped identifier")
	return dev, nil
}

// ClassifyPartitionTable returns gpt, msdos or none for the disk holding devicePath.
// none means we could not tell, e.g. the device sits on top of RAID or LVM.
func (r *Resolver) ClassifyPartitionTable(devicePath string) string {
	disk := ParentDisk(devicePath)

	table, err := r.Devices.PartitionTable(disk)
	if err != nil {
		utils.Log.Warn().Err(err).Str("disk", disk).Msg("Unable to detect the partition table, enabling every layout")
		return constants.LayoutNone
	}

	switch strings.ToLower(strings.TrimSpace(table)) {
	case "gpt":
		return constants.LayoutGPT
	case "dos", "msdos", "mbr":
		return constants.LayoutMSDOS
	default:
		utils.Log.Warn().Str("disk", disk).Str("table", table).Msg("Unknown partition table, enabling every layout")
		return constants.LayoutNone
	}
}

// Resolve builds the full descriptor of the boot device.
func (r *Resolver) Resolve(opts Options) (schema.DriveDescriptor, error) {
	if opts.WholeDiskZfs {
		return r.resolveZfs(opts)
	}

	d := schema.DriveDescriptor{FstabField: opts.Drive, PartitionNumber: schema.NoPartition}

	if strings.HasPrefix(opts.Drive, "(") {
		d.Layout = constants.LayoutNone
		d.Syntax = opts.Drive
		return d, nil
	}

	if d.FstabField == "" {
		entry, err := r.ResolveBootFstabEntry()
		if err != nil {
			return d, err
		}
		d.FstabField = entry.Spec
	}

	dev, err := r.MapIdentifierToDevice(d.FstabField)
	if err != nil {
		return d, err
	}
	d.DevicePath = dev
	d.PartitionNumber = GetPartitionNumber(dev)
	d.Layout = r.ClassifyPartitionTable(dev)

	if opts.Grub2Syntax {
		d.Syntax, err = FormatForGrub2(dev, d.Layout)
		if err != nil {
			return d, err
		}
	}

	utils.Log.Info().Str("device", d.DevicePath).Str("layout", d.Layout).Str("syntax", d.Syntax).Msg("Boot drive resolved")
	return d, nil
}

// resolveZfs handles whole disk zfs, where /boot lives inside the pool and grub2 reaches the
// kernels through the dataset path. The drive is still resolved when given, the installer needs it.
func (r *Resolver) resolveZfs(opts Options) (schema.DriveDescriptor, error) {
	d := schema.DriveDescriptor{
		FstabField:      opts.Drive,
		PartitionNumber: schema.NoPartition,
		Layout:          constants.LayoutNone,
		Syntax:          "/" + strings.Trim(opts.ZfsDataset, "/") + "/@",
	}

	if opts.Drive != "" {
		dev, err := r.MapIdentifierToDevice(opts.Drive)
		if err != nil {
			return d, err
		}
		d.DevicePath = dev
		d.PartitionNumber = GetPartitionNumber(dev)
	}

	utils.Log.Info().Str("dataset", opts.ZfsDataset).Str("syntax", d.Syntax).Msg("Whole disk zfs boot")
	return d, nil
}
