package emit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Input is everything an emitter renders from. Header and entries read the same Kernels and
// Default so the default index always points at the right stanza.
type Input struct {
	Kernels  []schema.BootEntry
	Default  int
	Drive    schema.DriveDescriptor
	Settings schema.Settings
}

// DefaultKernel returns the entry at the default index.
func (in Input) DefaultKernel() (schema.BootEntry, error) {
	if in.Default < 0 || in.Default >= len(in.Kernels) {
		return schema.BootEntry{}, fmt.Errorf("%w: default index %d out of %d kernels", constants.ErrDefaultNotFound, in.Default, len(in.Kernels))
	}
	return in.Kernels[in.Default], nil
}

// KernelPath is the directory holding the files of one kernel version.
func (in Input) KernelPath(k schema.BootEntry) string {
	return strings.TrimSuffix(in.Settings.KernelDirectory, "/") + "/" + k.Version
}

// Initrd returns the initrd file name, empty when no initrd should be loaded.
func (in Input) Initrd(k schema.BootEntry) string {
	if !in.Settings.UseInitrd {
		return ""
	}
	return k.InitrdFile
}

// Emitter renders one bootloader configuration grammar.
type Emitter interface {
	Name() string
	DefaultFileName() string
	// NeedsDrive reports whether the boot drive must be resolved before rendering.
	NeedsDrive(settings schema.Settings) bool
	Header(in Input) (string, error)
	Entry(in Input, position int, kernel schema.BootEntry) (string, error)
}

var emitters = map[string]func() Emitter{
	constants.Grub2:    func() Emitter { return &Grub2{} },
	constants.Extlinux: func() Emitter { return &Extlinux{} },
	constants.Lilo:     func() Emitter { return &Lilo{} },
}

// New returns the emitter registered for the bootloader name.
func New(name string) (Emitter, error) {
	ctor, ok := emitters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", constants.ErrUnsupportedBootloader, name)
	}
	return ctor(), nil
}

// Generate renders the whole configuration in memory: header, one entry per kernel, then the
// append text when enabled, byte for byte.
func Generate(e Emitter, in Input) ([]byte, error) {
	if len(in.Kernels) == 0 {
		return nil, constants.ErrNoKernelsReconciled
	}
	if _, err := in.DefaultKernel(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	header, err := e.Header(in)
	if err != nil {
		return nil, fmt.Errorf("rendering %s header: %w", e.Name(), err)
	}
	buf.WriteString(header)

	for i, k := range in.Kernels {
		entry, err := e.Entry(in, i, k)
		if err != nil {
			return nil, fmt.Errorf("rendering %s entry for %s: %w", e.Name(), k.Version, err)
		}
		buf.WriteString(entry)
	}

	if in.Settings.Append && in.Settings.AppendText != "" {
		buf.WriteString(in.Settings.AppendText)
	}

	return buf.Bytes(), nil
}

// Write stores data at the target. An existing target is only replaced when Overwrite is set.
// Data goes to a temporary sibling first and is renamed over the target, so a failed run never
// leaves a half written configuration behind.
func Write(fs vfs.FS, target schema.OutputTarget, data []byte) (err error) {
	if utils.Exists(fs, target.Path) && !target.Overwrite {
		return fmt.Errorf("%w: %s", constants.ErrOutputExists, target.Path)
	}

	dir := filepath.Dir(target.Path)
	if err := utils.CreateIfNotExists(fs, dir); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+filepath.Base(target.Path)+".tmp")
	f, err := fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			if rmErr := fs.Remove(tmp); rmErr != nil {
				utils.Log.Debug().Err(rmErr).Str("file", tmp).Msg("Removing temporary file")
			}
		}
	}()

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err = fs.Rename(tmp, target.Path); err != nil {
		return fmt.Errorf("moving %s into place: %w", target.Path, err)
	}

	utils.Log.Info().Str("file", target.Path).Str("size", humanize.Bytes(uint64(len(data)))).Msg("Configuration written")
	return nil
}

// VerifyOutput checks the configuration ended up where it was supposed to.
func VerifyOutput(fs vfs.FS, path string) error {
	if !utils.Exists(fs, path) {
		return fmt.Errorf("%w: %s", constants.ErrOutputMissing, path)
	}
	return nil
}

func render(t *template.Template, data interface{}) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
