package kernel

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/moby/sys/mountinfo"
	"github.com/twpayne/go-vfs/v4"
)

// Catalog matches the kernels found on disk with the kernels in the configuration.
// The reconciled list is the one positional source of truth: the default index and the order
// of the generated entries both come from it.
type Catalog struct {
	fs         vfs.FS
	discovered []string
	configured []schema.BootEntry
	reconciled []schema.BootEntry

	// MountCheck reports whether a path is a mount point, nil disables the check.
	MountCheck func(path string) (bool, error)
}

func NewCatalog(fs vfs.FS) *Catalog {
	return &Catalog{fs: fs, MountCheck: mountinfo.Mounted}
}

// LoadDiscoveredKernels lists the kernel directory, each subdirectory name is a kernel version.
// The directory is created when missing, which still leaves us with no kernels.
func (c *Catalog) LoadDiscoveredKernels(directory string) error {
	c.warnIfBootNotMounted(directory)

	if err := utils.CreateIfNotExists(c.fs, directory); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}

	entries, err := c.fs.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("listing %s: %w", directory, err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		versions = append(versions, e.Name())
	}
	c.discovered = utils.UniqueSlice(versions)

	if len(c.discovered) == 0 {
		return fmt.Errorf("%w: %s", constants.ErrEmptyKernelDirectory, directory)
	}

	utils.Log.Debug().Strs("kernels", c.discovered).Str("directory", directory).Msg("Kernels found on disk")
	return nil
}

// LoadConfiguredKernels keeps the declared entries in declaration order.
func (c *Catalog) LoadConfiguredKernels(entries []schema.BootEntry) {
	c.configured = append([]schema.BootEntry(nil), entries...)
}

// Reconcile keeps the configured entries whose version is on disk, in discovery order.
func (c *Catalog) Reconcile() []schema.BootEntry {
	c.reconciled = nil

	for _, version := range c.discovered {
		entry, found := c.configuredVersion(version)
		if !found {
			utils.Log.Warn().Str("kernel", version).Msg("Kernel found on disk but not in the configuration, skipping")
			continue
		}
		utils.Log.Debug().Str("kernel", version).Str("label", entry.Label).Msg("Kernel matched")
		c.reconciled = append(c.reconciled, entry)
	}

	return c.Reconciled()
}

func (c *Catalog) configuredVersion(version string) (schema.BootEntry, bool) {
	for _, e := range c.configured {
		if e.Version == version {
			return e, true
		}
	}
	return schema.BootEntry{}, false
}

// Reconciled returns a copy of the reconciled list.
func (c *Catalog) Reconciled() []schema.BootEntry {
	return append([]schema.BootEntry(nil), c.reconciled...)
}

// Discovered returns the kernel versions found on disk in discovery order.
func (c *Catalog) Discovered() []string {
	return append([]string(nil), c.discovered...)
}

func (c *Catalog) AnyReconciled() bool {
	return len(c.reconciled) > 0
}

// FindDefaultPosition returns the index of the default kernel within the reconciled list.
func (c *Catalog) FindDefaultPosition() (int, error) {
	for i, e := range c.reconciled {
		if e.IsDefault {
			return i, nil
		}
	}

	var wanted []string
	for _, e := range c.configured {
		if e.IsDefault {
			wanted = append(wanted, e.Version)
		}
	}
	if len(wanted) == 0 {
		return -1, fmt.Errorf("%w: no kernel is marked as default", constants.ErrDefaultNotFound)
	}
	return -1, fmt.Errorf("%w: %s", constants.ErrDefaultNotFound, strings.Join(wanted, ", "))
}

// Default returns the default reconciled entry.
func (c *Catalog) Default() (schema.BootEntry, error) {
	i, err := c.FindDefaultPosition()
	if err != nil {
		return schema.BootEntry{}, err
	}
	return c.reconciled[i], nil
}

func (c *Catalog) warnIfBootNotMounted(directory string) {
	if c.MountCheck == nil {
		return
	}
	clean := filepath.Clean(directory)
	if clean != constants.BootDir && !strings.HasPrefix(clean, constants.BootDir+"/") {
		return
	}

	mounted, err := c.MountCheck(constants.BootDir)
	if err != nil {
		utils.Log.Debug().Err(err).Msg("Checking if /boot is mounted")
		return
	}
	if !mounted {
		utils.Log.Warn().Str("directory", directory).Msg("/boot is not mounted, kernels might be missing")
	}
}
