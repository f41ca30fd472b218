package emit

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
)

const grub2HeaderTpl = `set timeout={{ .Timeout }}
set default={{ .Default }}

{{ range .Modules }}insmod {{ . }}
{{ end }}{{ with .Root }}
set root='{{ . }}'
{{ end }}
`

const grub2EntryTpl = `menuentry "{{ .Title }}" {
	linux {{ .Linux }}
{{- with .Initrd }}
	initrd {{ . }}
{{- end }}
}

`

var (
	grub2Header = template.Must(template.New("grub2-header").Parse(grub2HeaderTpl))
	grub2Entry  = template.Must(template.New("grub2-entry").Parse(grub2EntryTpl))
)

// Grub2 renders grub.cfg.
type Grub2 struct{}

func (g *Grub2) Name() string { return constants.Grub2 }

func (g *Grub2) DefaultFileName() string { return constants.DefaultFileNames()[constants.Grub2] }

func (g *Grub2) NeedsDrive(schema.Settings) bool { return true }

// Modules lists the insmod lines of the header in order.
func (g *Grub2) Modules(in Input) []string {
	var modules []string
	switch in.Drive.Layout {
	case constants.LayoutGPT:
		modules = append(modules, "part_gpt")
	case constants.LayoutMSDOS:
		modules = append(modules, "part_msdos")
	default:
		modules = append(modules, "part_gpt", "part_msdos")
	}
	if in.Settings.EFI {
		modules = append(modules, "efi_gop", "efi_uga")
	}
	if in.Settings.WholeDiskZfs {
		modules = append(modules, "zfs")
	}
	modules = append(modules, in.Settings.Modules...)
	return utils.UniqueSlice(modules)
}

func (g *Grub2) Header(in Input) (string, error) {
	data := struct {
		Timeout int
		Default int
		Modules []string
		Root    string
	}{
		Timeout: in.Settings.Timeout,
		Default: in.Default,
		Modules: g.Modules(in),
	}
	if !in.Settings.WholeDiskZfs {
		if in.Drive.Syntax == "" {
			return "", fmt.Errorf("%w: %s", constants.ErrUnrecognizedDeviceShape, in.Drive.DevicePath)
		}
		data.Root = in.Drive.Syntax
	}
	return render(grub2Header, data)
}

func (g *Grub2) Entry(in Input, _ int, k schema.BootEntry) (string, error) {
	path := in.KernelPath(k)
	if in.Settings.WholeDiskZfs {
		path = strings.TrimSuffix(in.Drive.Syntax, "/") + path
	}

	data := struct {
		Title  string
		Linux  string
		Initrd string
	}{
		Title: k.Title(),
		Linux: strings.TrimSpace(path + "/" + k.KernelFile + " " + k.Options),
	}
	if initrd := in.Initrd(k); initrd != "" {
		data.Initrd = path + "/" + initrd
	}
	return render(grub2Entry, data)
}
