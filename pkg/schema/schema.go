package schema

// BootEntry is one kernel as declared in the configuration.
type BootEntry struct {
	Label      string
	Version    string
	IsDefault  bool
	KernelFile string
	InitrdFile string
	Options    string
}

// Title is the human readable name used in menus, e.g. "Gentoo - 6.1.0".
func (b BootEntry) Title() string {
	return b.Label + " - " + b.Version
}

// NoPartition is returned when a device path carries no partition number, e.g. LVM volumes.
const NoPartition = -1

// DriveDescriptor is the boot device as a bootloader sees it. Recomputed on every run.
type DriveDescriptor struct {
	FstabField      string // e.g. UUID=1234 as found in fstab, or the value given explicitly
	DevicePath      string // e.g. /dev/sda1
	PartitionNumber int    // e.g. 1, NoPartition when absent
	Layout          string // gpt, msdos or none
	Syntax          string // e.g. (hd0,gpt1)
}

// OutputTarget is where the configuration ends up.
type OutputTarget struct {
	Path      string
	Overwrite bool
}

// ExtlinuxSettings are only used when generating extlinux.conf.
type ExtlinuxSettings struct {
	UI              string `yaml:"ui"`
	MenuTitle       string `yaml:"menuTitle"`
	TitleColor      string `yaml:"titleColor"`
	BorderColor     string `yaml:"borderColor"`
	UnselectedColor string `yaml:"unselectedColor"`
	// AutoBoot disables the menu and boots the default kernel right away.
	AutoBoot bool `yaml:"autoBoot"`
}

// Settings are the global knobs shared by every emitter.
type Settings struct {
	KernelDirectory string
	UseInitrd       bool
	Timeout         int
	EFI             bool
	Modules         []string // extra grub modules, one insmod each
	WholeDiskZfs    bool
	ZfsBootDataset  string // dataset holding /boot in whole disk zfs mode
	Extlinux        ExtlinuxSettings
	LiloOptions     []string
	Append          bool
	AppendText      string
}

// BlkidRecord is one device block from `blkid -o export`.
type BlkidRecord struct {
	Device   string
	UUID     string
	PartUUID string
	Label    string
	Type     string
	PTType   string
}
