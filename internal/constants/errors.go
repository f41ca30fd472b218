package constants

import (
	"errors"
	"fmt"
)

// The two error families. Every sentinel below wraps one of them so callers can tell
// a broken configuration apart from a broken host with errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrEnvironment   = errors.New("environment error")
)

var (
	ErrDefaultNotFound         = fmt.Errorf("%w: default kernel not found among the available kernels", ErrConfiguration)
	ErrMultipleDefaults        = fmt.Errorf("%w: more than one kernel is marked as default", ErrConfiguration)
	ErrUnsupportedBootloader   = fmt.Errorf("%w: unsupported bootloader", ErrConfiguration)
	ErrUnrecognizedDeviceShape = fmt.Errorf("%w: unable to translate the boot drive, set bootDrive explicitly", ErrConfiguration)
	ErrNoKernelsReconciled     = fmt.Errorf("%w: none of the kernels on disk are configured", ErrConfiguration)
	ErrInvalidConfig           = fmt.Errorf("%w: invalid configuration", ErrConfiguration)
	ErrConflictingInstallers   = fmt.Errorf("%w: extlinux and grub2 cannot be installed in the same run", ErrConfiguration)

	ErrNoBootEntry          = fmt.Errorf("%w: no /boot entry found in fstab", ErrEnvironment)
	ErrNoMatchingDrive      = fmt.Errorf("%w: no drive matches the identifier", ErrEnvironment)
	ErrEmptyKernelDirectory = fmt.Errorf("%w: no kernels found in the kernel directory", ErrEnvironment)
	ErrOutputExists         = fmt.Errorf("%w: output file already exists, use --force to overwrite", ErrEnvironment)
	ErrOutputMissing        = fmt.Errorf("%w: output file was not written", ErrEnvironment)
	ErrConfigNotFound       = fmt.Errorf("%w: configuration file not found", ErrEnvironment)
	ErrMissingTool          = fmt.Errorf("%w: required tool is not installed", ErrEnvironment)
	ErrNotRoot              = fmt.Errorf("%w: this program must be run as root", ErrEnvironment)
	ErrUnknownLayout        = fmt.Errorf("%w: unable to determine the partition layout of the drive", ErrEnvironment)
)
