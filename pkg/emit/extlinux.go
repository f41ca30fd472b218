package emit

import (
	"fmt"
	"text/template"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/schema"
)

const extlinuxHeaderTpl = `TIMEOUT {{ .Timeout }}
{{- if not .AutoBoot }}
UI {{ .UI }}
{{- end }}

DEFAULT {{ .Default }}

MENU TITLE {{ .MenuTitle }}
MENU COLOR title {{ .TitleColor }}
MENU COLOR border {{ .BorderColor }}
MENU COLOR unsel {{ .UnselectedColor }}

`

const extlinuxEntryTpl = `LABEL {{ .Name }}
	MENU LABEL {{ .Title }}
	LINUX {{ .Kernel }}
{{- with .Initrd }}
	INITRD {{ . }}
{{- end }}
	APPEND {{ .Options }}

`

var (
	extlinuxHeader = template.Must(template.New("extlinux-header").Parse(extlinuxHeaderTpl))
	extlinuxEntry  = template.Must(template.New("extlinux-entry").Parse(extlinuxEntryTpl))
)

// Extlinux renders extlinux.conf. Timeouts are in tenths of a second.
type Extlinux struct{}

func (e *Extlinux) Name() string { return constants.Extlinux }

func (e *Extlinux) DefaultFileName() string { return constants.DefaultFileNames()[constants.Extlinux] }

func (e *Extlinux) NeedsDrive(schema.Settings) bool { return false }

// labelName is the LABEL of the kernel at position, e.g. Gentoo0.
func labelName(k schema.BootEntry, position int) string {
	return fmt.Sprintf("%s%d", k.Label, position)
}

func (e *Extlinux) Header(in Input) (string, error) {
	def, err := in.DefaultKernel()
	if err != nil {
		return "", err
	}

	data := struct {
		schema.ExtlinuxSettings
		Timeout int
		Default string
	}{
		ExtlinuxSettings: in.Settings.Extlinux,
		Timeout:          in.Settings.Timeout * 10,
		Default:          labelName(def, in.Default),
	}
	return render(extlinuxHeader, data)
}

func (e *Extlinux) Entry(in Input, position int, k schema.BootEntry) (string, error) {
	path := in.KernelPath(k)
	data := struct {
		Name    string
		Title   string
		Kernel  string
		Initrd  string
		Options string
	}{
		Name:    labelName(k, position),
		Title:   k.Title(),
		Kernel:  path + "/" + k.KernelFile,
		Options: k.Options,
	}
	if initrd := in.Initrd(k); initrd != "" {
		data.Initrd = path + "/" + initrd
	}
	return render(extlinuxEntry, data)
}
