package drive

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/schema"
)

var (
	scsiPartitionRegex = regexp.MustCompile(`^/dev/[sv]d([a-z])(\d+)$`)
	scsiDiskRegex      = regexp.MustCompile(`^/dev/[sv]d([a-z])$`)
	mdRegex            = regexp.MustCompile(`^/dev/md/?(\d+)$`)
	mapperRegex        = regexp.MustCompile(`^/dev/mapper/([^/]+-[^/]+)$`)
	lvmRegex           = regexp.MustCompile(`^/dev/([^/]+)/([^/]+)$`)

	// nvme0n1p1, mmcblk0p1, md0p1 and friends put a "p" between the device and the partition number.
	pSuffixRegex     = regexp.MustCompile(`^(/dev/(?:nvme\d+n\d+|mmcblk\d+|loop\d+|nbd\d+|md/?\d+))p\d+$`)
	// raid arrays and device mapper nodes end in digits that are not a partition
	wholeDeviceRegex = regexp.MustCompile(`^/dev/(?:md/?\d+|dm-\d+)$`)
	digitSuffixRegex = regexp.MustCompile(`^(.*[^\d])\d+$`)
	partNumberRegex  = regexp.MustCompile(`(\d+)$`)
)

// directories under /dev that are never volume groups
var notVolumeGroups = map[string]bool{
	"disk":   true,
	"mapper": true,
	"md":     true,
	"block":  true,
}

// FormatForGrub2 translates a device path into the syntax grub2 uses for `set root`.
//
//	/dev/sdb2 + gpt      -> (hd1,gpt2)
//	/dev/sda             -> (hd0)
//	/dev/md0             -> (md/0)
//	/dev/mapper/vg-root  -> (lvm/vg-root)
//	/dev/vg/root         -> (lvm/vg-root)
func FormatForGrub2(devicePath, layout string) (string, error) {
	if m := scsiPartitionRegex.FindStringSubmatch(devicePath); m != nil {
		if layout == constants.LayoutNone || layout == "" {
			return fmt.Sprintf("(hd%d,%s)", alphaIndex(m[1]), m[2]), nil
		}
		return fmt.Sprintf("(hd%d,%s%s)", alphaIndex(m[1]), layout, m[2]), nil
	}
	if m := scsiDiskRegex.FindStringSubmatch(devicePath); m != nil {
		return fmt.Sprintf("(hd%d)", alphaIndex(m[1])), nil
	}
	if m := mdRegex.FindStringSubmatch(devicePath); m != nil {
		return fmt.Sprintf("(md/%s)", m[1]), nil
	}
	if m := mapperRegex.FindStringSubmatch(devicePath); m != nil {
		return fmt.Sprintf("(lvm/%s)", m[1]), nil
	}
	if m := lvmRegex.FindStringSubmatch(devicePath); m != nil && !notVolumeGroups[m[1]] {
		return fmt.Sprintf("(lvm/%s-%s)", m[1], m[2]), nil
	}

	return "", fmt.Errorf("%w: %q", constants.ErrUnrecognizedDeviceShape, devicePath)
}

// GetPartitionNumber returns the partition number of a device, or schema.NoPartition for whole
// devices such as /dev/sda, /dev/nvme0n1 or /dev/md0.
func GetPartitionNumber(devicePath string) int {
	if ParentDisk(devicePath) == devicePath {
		return schema.NoPartition
	}
	m := partNumberRegex.FindStringSubmatch(devicePath)
	if m == nil {
		return schema.NoPartition
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return schema.NoPartition
	}
	return n
}

// ParentDisk strips the partition suffix from a device path: /dev/sda1 -> /dev/sda,
// /dev/nvme0n1p2 -> /dev/nvme0n1, /dev/md0p1 -> /dev/md0. Whole devices are returned as they are.
func ParentDisk(devicePath string) string {
	if wholeDeviceRegex.MatchString(devicePath) {
		return devicePath
	}
	if m := pSuffixRegex.FindStringSubmatch(devicePath); m != nil {
		return m[1]
	}
	if pSuffixRegex.MatchString(devicePath + "p1") {
		// a whole nvme/mmc disk or raid array, its trailing digits are not a partition
		return devicePath
	}
	if m := digitSuffixRegex.FindStringSubmatch(devicePath); m != nil {
		return m[1]
	}
	return devicePath
}

func alphaIndex(letter string) int {
	return int(letter[0] - 'a')
}
