package drive_test

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/drive"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/twpayne/go-vfs/v4"
	"github.com/twpayne/go-vfs/v4/vfst"
)

type fakeDevices struct {
	ids     map[string]string
	tables  map[string]string
	queried []string
}

func (f *fakeDevices) Lookup(kind, value string) (string, error) {
	return f.ids[kind+"="+value], nil
}

func (f *fakeDevices) PartitionTable(disk string) (string, error) {
	f.queried = append(f.queried, disk)
	t, ok := f.tables[disk]
	if !ok {
		return "", fmt.Errorf("no partition table on %s", disk)
	}
	return t, nil
}

type fakeRunner struct {
	outputs map[string]string
	calls   []string
}

func (f *fakeRunner) Run(name string, args ...string) (string, error) {
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	out, ok := f.outputs[call]
	if !ok {
		return "", errors.New("exit status 2")
	}
	return out, nil
}

const fstabContent = `# /etc/fstab
UUID=0A1B2C3D-0000-4000-8000-00000000AAAA  /boot/efi  vfat  noauto  0 2
PARTUUID=5e1f-02                           /boot      ext2  noauto,noatime  1 2
/dev/mapper/vg-root                        /          ext4  noatime  0 1
`

var _ = Describe("drive resolution", func() {
	var fs vfs.FS
	var cleanup func()
	var devices *fakeDevices
	var resolver *drive.Resolver

	BeforeEach(func() {
		var err error
		fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
			"/etc/fstab": fstabContent,
		})
		Expect(err).ToNot(HaveOccurred())
		devices = &fakeDevices{
			ids: map[string]string{
				"PARTUUID=5e1f-02": "/dev/sda2",
				"UUID=0a1b2c3d-0000-4000-8000-00000000aaaa": "/dev/sda1",
			},
			tables: map[string]string{"/dev/sda": "gpt", "/dev/sdb": "dos"},
		}
		resolver = drive.NewResolver(fs, devices)
	})
	AfterEach(func() {
		cleanup()
	})

	DescribeTable("FormatForGrub2",
		func(device, layout, expected string) {
			syntax, err := drive.FormatForGrub2(device, layout)
			Expect(err).ToNot(HaveOccurred())
			Expect(syntax).To(Equal(expected))
		},
		Entry("gpt partition", "/dev/sdb2", constants.LayoutGPT, "(hd1,gpt2)"),
		Entry("msdos partition", "/dev/sda1", constants.LayoutMSDOS, "(hd0,msdos1)"),
		Entry("virtio partition", "/dev/vdc3", constants.LayoutGPT, "(hd2,gpt3)"),
		Entry("unknown layout", "/dev/sda1", constants.LayoutNone, "(hd0,1)"),
		Entry("whole disk", "/dev/sda", constants.LayoutNone, "(hd0)"),
		Entry("md raid", "/dev/md0", constants.LayoutNone, "(md/0)"),
		Entry("md raid by name", "/dev/md/127", constants.LayoutNone, "(md/127)"),
		Entry("device mapper", "/dev/mapper/vg-root", constants.LayoutNone, "(lvm/vg-root)"),
		Entry("volume group path", "/dev/vg/root", constants.LayoutNone, "(lvm/vg-root)"),
	)

	DescribeTable("FormatForGrub2 failures",
		func(device string) {
			_, err := drive.FormatForGrub2(device, constants.LayoutGPT)
			Expect(err).To(MatchError(constants.ErrUnrecognizedDeviceShape))
			Expect(errors.Is(err, constants.ErrConfiguration)).To(BeTrue())
		},
		Entry("nvme", "/dev/nvme0n1p1"),
		Entry("by-uuid path", "/dev/disk/by-uuid/1234"),
		Entry("not a device", "tank/root"),
	)

	Context("GetPartitionNumber", func() {
		It("Returns the trailing digits", func() {
			Expect(drive.GetPartitionNumber("/dev/sda1")).To(Equal(1))
			Expect(drive.GetPartitionNumber("/dev/sdb12")).To(Equal(12))
		})
		It("Returns NoPartition when there is none", func() {
			Expect(drive.GetPartitionNumber("/dev/mapper/vg-root")).To(Equal(schema.NoPartition))
			Expect(drive.GetPartitionNumber("/dev/sda")).To(Equal(schema.NoPartition))
		})
		It("Does not mistake array and namespace indices for partitions", func() {
			Expect(drive.GetPartitionNumber("/dev/md0")).To(Equal(schema.NoPartition))
			Expect(drive.GetPartitionNumber("/dev/md/127")).To(Equal(schema.NoPartition))
			Expect(drive.GetPartitionNumber("/dev/dm-3")).To(Equal(schema.NoPartition))
			Expect(drive.GetPartitionNumber("/dev/nvme0n1")).To(Equal(schema.NoPartition))
			Expect(drive.GetPartitionNumber("/dev/nvme0n1p3")).To(Equal(3))
			Expect(drive.GetPartitionNumber("/dev/md0p2")).To(Equal(2))
		})
	})

	Context("ParentDisk", func() {
		It("Strips partition suffixes", func() {
			Expect(drive.ParentDisk("/dev/sda1")).To(Equal("/dev/sda"))
			Expect(drive.ParentDisk("/dev/nvme0n1p2")).To(Equal("/dev/nvme0n1"))
			Expect(drive.ParentDisk("/dev/mmcblk0p1")).To(Equal("/dev/mmcblk0"))
		})
		It("Keeps whole disks as they are", func() {
			Expect(drive.ParentDisk("/dev/sda")).To(Equal("/dev/sda"))
			Expect(drive.ParentDisk("/dev/nvme0n1")).To(Equal("/dev/nvme0n1"))
		})
		It("Keeps raid arrays and mapper nodes whole", func() {
			Expect(drive.ParentDisk("/dev/md0")).To(Equal("/dev/md0"))
			Expect(drive.ParentDisk("/dev/md/0")).To(Equal("/dev/md/0"))
			Expect(drive.ParentDisk("/dev/md127")).To(Equal("/dev/md127"))
			Expect(drive.ParentDisk("/dev/dm-0")).To(Equal("/dev/dm-0"))
			Expect(drive.ParentDisk("/dev/md0p1")).To(Equal("/dev/md0"))
		})
	})

	Context("ResolveBootFstabEntry", func() {
		It("Picks the exact /boot entry and not /boot/efi", func() {
			entry, err := resolver.ResolveBootFstabEntry()
			Expect(err).ToNot(HaveOccurred())
			Expect(entry.Spec).To(Equal("PARTUUID=5e1f-02"))
			Expect(entry.File).To(Equal("/boot"))
		})
		It("Fails when there is no /boot entry", func() {
			Expect(fs.WriteFile("/etc/fstab", []byte("/dev/sda1 /boot/efi vfat defaults 0 2\n"), 0o644)).To(Succeed())
			_, err := resolver.ResolveBootFstabEntry()
			Expect(err).To(MatchError(constants.ErrNoBootEntry))
			Expect(errors.Is(err, constants.ErrEnvironment)).To(BeTrue())
		})
		It("Fails when there is no fstab", func() {
			Expect(fs.Remove("/etc/fstab")).To(Succeed())
			_, err := resolver.ResolveBootFstabEntry()
			Expect(err).To(MatchError(constants.ErrNoBootEntry))
		})
	})

	Context("MapIdentifierToDevice", func() {
		It("Passes plain devices through", func() {
			dev, err := resolver.MapIdentifierToDevice("/dev/md0")
			Expect(err).ToNot(HaveOccurred())
			Expect(dev).To(Equal("/dev/md0"))
		})
		It("Resolves PARTUUID", func() {
			dev, err := resolver.MapIdentifierToDevice("PARTUUID=5e1f-02")
			Expect(err).ToNot(HaveOccurred())
			Expect(dev).To(Equal("/dev/sda2"))
		})
		It("Normalizes uppercase UUIDs", func() {
			dev, err := resolver.MapIdentifierToDevice("UUID=0A1B2C3D-0000-4000-8000-00000000AAAA")
			Expect(err).ToNot(HaveOccurred())
			Expect(dev).To(Equal("/dev/sda1"))
		})
		It("Fails when nothing matches", func() {
			_, err := resolver.MapIdentifierToDevice("UUID=ffff")
			Expect(err).To(MatchError(constants.ErrNoMatchingDrive))
		})
	})

	Context("ClassifyPartitionTable", func() {
		It("Queries the parent disk", func() {
			Expect(resolver.ClassifyPartitionTable("/dev/sda2")).To(Equal(constants.LayoutGPT))
			Expect(devices.queried).To(Equal([]string{"/dev/sda"}))
		})
		It("Maps dos to msdos", func() {
			Expect(resolver.ClassifyPartitionTable("/dev/sdb1")).To(Equal(constants.LayoutMSDOS))
		})
		It("Returns none when the query fails", func() {
			Expect(resolver.ClassifyPartitionTable("/dev/md0")).To(Equal(constants.LayoutNone))
		})
	})

	Context("Resolve", func() {
		It("Resolves the boot drive from fstab", func() {
			d, err := resolver.Resolve(drive.Options{Grub2Syntax: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(d).To(Equal(schema.DriveDescriptor{
				FstabField:      "PARTUUID=5e1f-02",
				DevicePath:      "/dev/sda2",
				PartitionNumber: 2,
				Layout:          constants.LayoutGPT,
				Syntax:          "(hd0,gpt2)",
			}))
		})
		It("Prefers an explicit drive over fstab", func() {
			Expect(fs.Remove("/etc/fstab")).To(Succeed())
			d, err := resolver.Resolve(drive.Options{Drive: "/dev/sdb3", Grub2Syntax: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.Syntax).To(Equal("(hd1,msdos3)"))
		})
		It("Takes explicit grub2 syntax as is", func() {
			d, err := resolver.Resolve(drive.Options{Drive: "(hd0,gpt9)", Grub2Syntax: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.Syntax).To(Equal("(hd0,gpt9)"))
			Expect(d.Layout).To(Equal(constants.LayoutNone))
			Expect(devices.queried).To(BeEmpty())
		})
		It("Does not need grub2 syntax for other bootloaders", func() {
			d, err := resolver.Resolve(drive.Options{Drive: "/dev/nvme0n1p1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.DevicePath).To(Equal("/dev/nvme0n1p1"))
			Expect(d.PartitionNumber).To(Equal(1))
			Expect(devices.queried).To(Equal([]string{"/dev/nvme0n1"}))
		})
		It("Fails for shapes grub2 cannot name", func() {
			_, err := resolver.Resolve(drive.Options{Drive: "/dev/nvme0n1p1", Grub2Syntax: true})
			Expect(err).To(MatchError(constants.ErrUnrecognizedDeviceShape))
		})
		It("Skips fstab and layout detection on whole disk zfs", func() {
			Expect(fs.Remove("/etc/fstab")).To(Succeed())
			d, err := resolver.Resolve(drive.Options{WholeDiskZfs: true, ZfsDataset: "tank/gentoo/root", Grub2Syntax: true})
			Expect(err).ToNot(HaveOccurred())
			Expect(d.Layout).To(Equal(constants.LayoutNone))
			Expect(d.Syntax).To(Equal("/tank/gentoo/root/@"))
			Expect(devices.queried).To(BeEmpty())
		})
	})
})

var _ = Describe("system block devices", func() {
	var fs vfs.FS
	var cleanup func()
	var runner *fakeRunner

	BeforeEach(func() {
		var err error
		fs, cleanup, err = vfst.NewTestFS(map[string]interface{}{
			"/dev/disk/by-uuid/1111-2222": &vfst.Symlink{Target: "../../sda1"},
		})
		Expect(err).ToNot(HaveOccurred())
		runner = &fakeRunner{outputs: map[string]string{
			"blkid -o export -t UUID=3333": "DEVNAME=/dev/sdc4\nUUID=3333\nTYPE=ext4\n",
			"blkid -o export -p /dev/sda":  "DEVNAME=/dev/sda\nPTUUID=abcd\nPTTYPE=gpt\n",
		}}
	})
	AfterEach(func() {
		cleanup()
	})

	It("Resolves through udev symlinks first", func() {
		s := drive.NewSystemBlockDevices(fs, runner)
		dev, err := s.Lookup(drive.KindUUID, "1111-2222")
		Expect(err).ToNot(HaveOccurred())
		Expect(dev).To(Equal("/dev/sda1"))
		Expect(runner.calls).To(BeEmpty())
	})
	It("Falls back to blkid", func() {
		s := drive.NewSystemBlockDevices(fs, runner)
		dev, err := s.Lookup(drive.KindUUID, "3333")
		Expect(err).ToNot(HaveOccurred())
		Expect(dev).To(Equal("/dev/sdc4"))
	})
	It("Returns nothing when blkid finds nothing", func() {
		s := drive.NewSystemBlockDevices(fs, runner)
		dev, err := s.Lookup(drive.KindUUID, "4444")
		Expect(err).ToNot(HaveOccurred())
		Expect(dev).To(BeEmpty())
	})
	It("Reads the partition table type", func() {
		s := drive.NewSystemBlockDevices(fs, runner)
		table, err := s.PartitionTable("/dev/sda")
		Expect(err).ToNot(HaveOccurred())
		Expect(table).To(Equal("gpt"))
	})
	It("Parses several devices out of blkid", func() {
		records, err := drive.ParseBlkidExport("DEVNAME=/dev/sda1\nUUID=aa\nPARTUUID=p1\n\nDEVNAME=/dev/sda2\nLABEL=\"my root\"\nTYPE=ext4\n\n")
		Expect(err).ToNot(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0]).To(Equal(schema.BlkidRecord{Device: "/dev/sda1", UUID: "aa", PartUUID: "p1"}))
		Expect(records[1].Label).To(Equal("my root"))
		Expect(records[1].Type).To(Equal("ext4"))
	})
})
