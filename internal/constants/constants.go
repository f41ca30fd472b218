package constants

const (
	OpLoadConfig        = "load-config"
	OpDiscoverKernels   = "discover-kernels"
	OpResolveDrive      = "resolve-drive"
	OpWriteConfig       = "write-config"
	OpVerifyOutput      = "verify-output"
	OpCreateBootLink    = "create-bootlink"
	OpInstallBootloader = "install-bootloader"
)

const (
	Grub2    = "grub2"
	Extlinux = "extlinux"
	Lilo     = "lilo"

	LayoutGPT   = "gpt"
	LayoutMSDOS = "msdos"
	LayoutNone  = "none"
)

const (
	ConfigFile  = "/etc/bliss-boot/config.yaml"
	EnvFile     = "/etc/default/bliss-boot"
	FstabFile   = "/etc/fstab"
	BootDir     = "/boot"
	BootLink    = "/boot/boot"
	KernelDir   = "/boot/kernels"
	ExtlinuxDir = "/boot/extlinux"

	// SyslinuxDir holds the menu modules and firmware images shipped by syslinux.
	SyslinuxDir   = "/usr/share/syslinux"
	ExtlinuxGPTFw = SyslinuxDir + "/gptmbr.bin"
	ExtlinuxMBRFw = SyslinuxDir + "/mbr.bin"
	LibUtil       = "libutil.c32"

	// FirmwareSize is the boot code area of the MBR, the partition table starts right after it.
	FirmwareSize = 440
)

const (
	DefaultTimeout     = 3
	DefaultLabel       = "Linux"
	DefaultKernelFile  = "vmlinuz"
	DefaultInitrdFile  = "initrd"
	DefaultExtlinuxUI  = "menu.c32"
	DefaultMenuTitle   = "Boot Menu"
	DefaultTitleColor  = "1;37;40"
	DefaultBorderColor = "30;40"
	DefaultUnselColor  = "37;40"
)

// DefaultFileNames is the output file written for each bootloader when no output path is given.
func DefaultFileNames() map[string]string {
	return map[string]string{
		Grub2:    "grub.cfg",
		Extlinux: "extlinux.conf",
		Lilo:     "lilo.conf",
	}
}

// DefaultLiloOptions are the lines placed at the top of lilo.conf when none are configured.
func DefaultLiloOptions() []string {
	return []string{"prompt", "compact"}
}
