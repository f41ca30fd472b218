package emit

import (
	"fmt"
	"text/template"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/schema"
)

const liloHeaderTpl = `boot = {{ .Boot }}
timeout = {{ .Timeout }}
default = {{ .Default }}
{{ range .Options }}{{ . }}
{{ end }}
`

const liloEntryTpl = `image = {{ .Kernel }}
	label = {{ .Label }}
	append = "{{ .Options }}"
{{- with .Initrd }}
	initrd = {{ . }}
{{- end }}

`

var (
	liloHeader = template.Must(template.New("lilo-header").Parse(liloHeaderTpl))
	liloEntry  = template.Must(template.New("lilo-entry").Parse(liloEntryTpl))
)

// Lilo renders lilo.conf. Entries are labeled by kernel version, the default refers to it.
type Lilo struct{}

func (l *Lilo) Name() string { return constants.Lilo }

func (l *Lilo) DefaultFileName() string { return constants.DefaultFileNames()[constants.Lilo] }

func (l *Lilo) NeedsDrive(schema.Settings) bool { return true }

func (l *Lilo) Header(in Input) (string, error) {
	if in.Drive.DevicePath == "" {
		return "", fmt.Errorf("%w: lilo needs a boot device", constants.ErrNoMatchingDrive)
	}
	def, err := in.DefaultKernel()
	if err != nil {
		return "", err
	}

	data := struct {
		Boot    string
		Timeout int
		Default string
		Options []string
	}{
		Boot:    in.Drive.DevicePath,
		Timeout: in.Settings.Timeout * 10,
		Default: def.Version,
		Options: in.Settings.LiloOptions,
	}
	return render(liloHeader, data)
}

func (l *Lilo) Entry(in Input, _ int, k schema.BootEntry) (string, error) {
	path := in.KernelPath(k)
	data := struct {
		Kernel  string
		Label   string
		Options string
		Initrd  string
	}{
		Kernel:  path + "/" + k.KernelFile,
		Label:   k.Version,
		Options: k.Options,
	}
	if initrd := in.Initrd(k); initrd != "" {
		data.Initrd = path + "/" + initrd
	}
	return render(liloEntry, data)
}
