package drive

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/joho/godotenv"
	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

const (
	KindUUID     = "UUID"
	KindPartUUID = "PARTUUID"
)

// BlockDevices answers the questions we have about the block devices of the host.
type BlockDevices interface {
	// Lookup returns the device carrying the given UUID or PARTUUID, or "" when there is none.
	Lookup(kind, value string) (string, error)
	// PartitionTable returns the partition table type of a whole disk as blkid reports it.
	PartitionTable(disk string) (string, error)
}

// SystemBlockDevices queries udev symlinks, ghw and blkid, in that order.
type SystemBlockDevices struct {
	FS     vfs.FS
	Runner utils.Runner
}

func NewSystemBlockDevices(fs vfs.FS, runner utils.Runner) *SystemBlockDevices {
	return &SystemBlockDevices{FS: fs, Runner: runner}
}

func (s *SystemBlockDevices) Lookup(kind, value string) (string, error) {
	link := filepath.Join("/dev/disk", "by-"+strings.ToLower(kind), value)
	if target, err := s.FS.Readlink(link); err == nil {
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(link), target)
		}
		utils.Log.Debug().Str("link", link).Str("device", target).Msg("Resolved through udev")
		return filepath.Clean(target), nil
	}

	if kind == KindPartUUID {
		if dev := s.lookupInventory(value); dev != "" {
			return dev, nil
		}
	}

	out, err := s.Runner.Run("blkid", "-o", "export", "-t", kind+"="+value)
	if err != nil {
		if errors.Is(err, constants.ErrMissingTool) {
			return "", err
		}
		// blkid exits with 2 when nothing matches the token
		utils.Log.Debug().Err(err).Str(kind, value).Msg("blkid found nothing")
		return "", nil
	}

	records, err := ParseBlkidExport(out)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if (kind == KindUUID && strings.EqualFold(r.UUID, value)) ||
			(kind == KindPartUUID && strings.EqualFold(r.PartUUID, value)) {
			return r.Device, nil
		}
	}

	return "", nil
}

func (s *SystemBlockDevices) lookupInventory(partUUID string) string {
	blk, err := ghw.Block()
	if err != nil {
		utils.Log.Debug().Err(err).Msg("Reading block devices")
		return ""
	}

	for _, disk := range blk.Disks {
		for _, p := range disk.Partitions {
			if p.UUID != "" && strings.EqualFold(p.UUID, partUUID) {
				utils.Log.Debug().Str("partuuid", partUUID).Str("device", p.Name).Msg("Resolved through block inventory")
				return filepath.Join("/dev", p.Name)
			}
		}
	}

	return ""
}

func (s *SystemBlockDevices) PartitionTable(disk string) (string, error) {
	out, err := s.Runner.Run("blkid", "-o", "export", "-p", disk)
	if err != nil {
		return "", err
	}

	records, err := ParseBlkidExport(out)
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if r.PTType != "" {
			return r.PTType, nil
		}
	}

	return "", nil
}

// ParseBlkidExport parses the output of `blkid -o export`: KEY=VALUE lines, one blank line
// between devices.
func ParseBlkidExport(out string) ([]schema.BlkidRecord, error) {
	var records []schema.BlkidRecord

	for _, block := range strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n\n") {
		if strings.TrimSpace(block) == "" {
			continue
		}

		values, err := godotenv.Unmarshal(block)
		if err != nil {
			return nil, err
		}

		records = append(records, schema.BlkidRecord{
			Device:   values["DEVNAME"],
			UUID:     values["UUID"],
			PartUUID: values["PARTUUID"],
			Label:    values["LABEL"],
			Type:     values["TYPE"],
			PTType:   values["PTTYPE"],
		})
	}

	return records, nil
}
