package config_test

import (
	"errors"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/config"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

const tupleConfig = `
bootloader: grub2
kernelDirectory: /boot/kernels/
timeout: 5
efi: true
modules: [lvm, " ", luks]
kernels:
  - [Gentoo, 3.14.27-KS.01, 1, vmlinuz, initrd, root=/dev/sda1 quiet]
  - [Gentoo, 3.12.20-KS.11, 0, vmlinuz, initrd-3.12.20-KS.11, root=/dev/sda1 ro quiet]
`

const mapConfig = `
bootloader: extlinux
default: 3.12.11-KS.01
kernels:
  3.12.10-KS.01: root=/dev/sda1 ro
  3.12.11-KS.01: root=/dev/sda1 quiet
`

const recordConfig = `
bootloader: lilo
useInitrd: false
defaultLabel: Funtoo
kernels:
  - version: 6.1.0
    default: true
    options: root=/dev/sda2
  - label: Debian
    version: 5.10.0
    kernel: bzImage
    initrd: initramfs
    options: root=/dev/sda3
`

var _ = Describe("config", func() {
	var fs vfs.FS
	var cleanup func()

	newFS := func(files map[string]interface{}) {
		var err error
		fs, cleanup, err = vfst.NewTestFS(files)
		Expect(err).ToNot(HaveOccurred())
	}

	AfterEach(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	Context("kernel layouts", func() {
		It("Reads the tuple list", func() {
			newFS(map[string]interface{}{constants.ConfigFile: tupleConfig})
			c, err := config.Load(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Bootloader).To(Equal(constants.Grub2))
			Expect(c.FileName()).To(Equal("grub.cfg"))
			Expect(c.Settings.KernelDirectory).To(Equal("/boot/kernels"))
			Expect(c.Settings.Timeout).To(Equal(5))
			Expect(c.Settings.EFI).To(BeTrue())
			Expect(c.Settings.UseInitrd).To(BeTrue())
			Expect(c.Settings.Modules).To(Equal([]string{"lvm", "luks"}))
			Expect(c.Kernels).To(Equal([]schema.BootEntry{
				{Label: "Gentoo", Version: "3.14.27-KS.01", IsDefault: true, KernelFile: "vmlinuz", InitrdFile: "initrd", Options: "root=/dev/sda1 quiet"},
				{Label: "Gentoo", Version: "3.12.20-KS.11", IsDefault: false, KernelFile: "vmlinuz", InitrdFile: "initrd-3.12.20-KS.11", Options: "root=/dev/sda1 ro quiet"},
			}))
		})
		It("Reads the version map with a top level default", func() {
			newFS(map[string]interface{}{constants.ConfigFile: mapConfig})
			c, err := config.Load(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Kernels).To(HaveLen(2))
			Expect(c.Kernels[0].Version).To(Equal("3.12.10-KS.01"))
			Expect(c.Kernels[0].IsDefault).To(BeFalse())
			Expect(c.Kernels[1].IsDefault).To(BeTrue())
			Expect(c.Kernels[1].Label).To(Equal(constants.DefaultLabel))
			Expect(c.Kernels[1].KernelFile).To(Equal(constants.DefaultKernelFile))
			Expect(c.Kernels[1].InitrdFile).To(Equal(constants.DefaultInitrdFile))
			Expect(c.Settings.Timeout).To(Equal(constants.DefaultTimeout))
			Expect(c.Settings.Extlinux.UI).To(Equal(constants.DefaultExtlinuxUI))
			Expect(c.Settings.Extlinux.MenuTitle).To(Equal(constants.DefaultMenuTitle))
		})
		It("Reads the record list", func() {
			newFS(map[string]interface{}{constants.ConfigFile: recordConfig})
			c, err := config.Load(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Settings.UseInitrd).To(BeFalse())
			Expect(c.Settings.LiloOptions).To(Equal(constants.DefaultLiloOptions()))
			Expect(c.Kernels[0]).To(Equal(schema.BootEntry{
				Label: "Funtoo", Version: "6.1.0", IsDefault: true, KernelFile: "vmlinuz", InitrdFile: "initrd", Options: "root=/dev/sda2",
			}))
			Expect(c.Kernels[1].Label).To(Equal("Debian"))
			Expect(c.Kernels[1].KernelFile).To(Equal("bzImage"))
		})
	})

	Context("env file", func() {
		It("Overrides the yaml values", func() {
			newFS(map[string]interface{}{
				constants.ConfigFile: tupleConfig,
				constants.EnvFile:    "BLISS_BOOT_BOOTLOADER=extlinux\nBLISS_BOOT_TIMEOUT=9\nBLISS_BOOT_DRIVE=/dev/sdb1\nBLISS_BOOT_KERNEL_DIRECTORY=/kernels\n",
			})
			c, err := config.Load(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Bootloader).To(Equal(constants.Extlinux))
			Expect(c.Settings.Timeout).To(Equal(9))
			Expect(c.BootDrive).To(Equal("/dev/sdb1"))
			Expect(c.Settings.KernelDirectory).To(Equal("/kernels"))
		})
		It("Rejects a timeout that is not a number", func() {
			newFS(map[string]interface{}{
				constants.ConfigFile: tupleConfig,
				constants.EnvFile:    "BLISS_BOOT_TIMEOUT=soon\n",
			})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrInvalidConfig))
		})
	})

	Context("validation", func() {
		It("Fails on a missing file", func() {
			newFS(map[string]interface{}{"/etc": &vfst.Dir{Perm: 0o755}})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrConfigNotFound))
			Expect(errors.Is(err, constants.ErrEnvironment)).To(BeTrue())
		})
		It("Fails when more than one kernel is the default", func() {
			newFS(map[string]interface{}{constants.ConfigFile: `
kernels:
  - [Gentoo, "1.0", 1, vmlinuz, initrd, quiet]
  - [Gentoo, "2.0", 1, vmlinuz, initrd, quiet]
`})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrMultipleDefaults))
			Expect(errors.Is(err, constants.ErrConfiguration)).To(BeTrue())
		})
		It("Reports every problem at once", func() {
			newFS(map[string]interface{}{constants.ConfigFile: `
bootloader: systemd-boot
timeout: -1
wholeDiskZfs: true
kernels:
  - [Gentoo, "1.0", 1, vmlinuz, initrd, quiet]
`})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrUnsupportedBootloader))
			Expect(err).To(MatchError(constants.ErrInvalidConfig))
			Expect(err.Error()).To(ContainSubstring("timeout"))
			Expect(err.Error()).To(ContainSubstring("wholeDiskZfsBootPool"))
		})
		It("Fails without kernels", func() {
			newFS(map[string]interface{}{constants.ConfigFile: "bootloader: grub2\n"})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrInvalidConfig))
		})
		It("Fails on short tuples", func() {
			newFS(map[string]interface{}{constants.ConfigFile: "kernels:\n  - [Gentoo, \"1.0\", 1]\n"})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrInvalidConfig))
			Expect(err.Error()).To(ContainSubstring("6 fields"))
		})
		It("Fails on a bad default flag", func() {
			newFS(map[string]interface{}{constants.ConfigFile: "kernels:\n  - [Gentoo, \"1.0\", maybe, vmlinuz, initrd, quiet]\n"})
			_, err := config.Load(fs, constants.ConfigFile)
			Expect(err).To(MatchError(constants.ErrInvalidConfig))
		})
		It("Strips slashes from the zfs dataset", func() {
			newFS(map[string]interface{}{constants.ConfigFile: `
wholeDiskZfs: true
wholeDiskZfsBootPool: /tank/gentoo/root/
kernels:
  - [Gentoo, "1.0", 1, vmlinuz, initrd, quiet]
`})
			c, err := config.Load(fs, constants.ConfigFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(c.Settings.ZfsBootDataset).To(Equal("tank/gentoo/root"))
		})
	})
})
