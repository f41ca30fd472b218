package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/internal/utils"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
	"gopkg.in/yaml.v3"
)

// Environment keys read from constants.EnvFile, they win over the yaml file.
const (
	EnvBootloader      = "BLISS_BOOT_BOOTLOADER"
	EnvTimeout         = "BLISS_BOOT_TIMEOUT"
	EnvDrive           = "BLISS_BOOT_DRIVE"
	EnvKernelDirectory = "BLISS_BOOT_KERNEL_DIRECTORY"
)

// Config is loaded once per run and shared by pointer.
type Config struct {
	Path       string
	Bootloader string
	BootDrive  string
	Kernels    []schema.BootEntry
	Settings   schema.Settings
}

type file struct {
	Bootloader      string                  `yaml:"bootloader"`
	KernelDirectory string                  `yaml:"kernelDirectory"`
	UseInitrd       *bool                   `yaml:"useInitrd"`
	Timeout         *int                    `yaml:"timeout"`
	BootDrive       string                  `yaml:"bootDrive"`
	EFI             bool                    `yaml:"efi"`
	Modules         []string                `yaml:"modules"`
	WholeDiskZfs    bool                    `yaml:"wholeDiskZfs"`
	ZfsBootDataset  string                  `yaml:"wholeDiskZfsBootPool"`
	Extlinux        schema.ExtlinuxSettings `yaml:"extlinux"`
	LiloOptions     []string                `yaml:"liloOptions"`
	Append          bool                    `yaml:"append"`
	AppendText      string                  `yaml:"appendText"`
	DefaultLabel    string                  `yaml:"defaultLabel"`
	Default         string                  `yaml:"default"`
	Kernels         yaml.Node               `yaml:"kernels"`
}

// Load reads the yaml configuration at path, applies the env file overrides and validates the result.
func Load(fileSystem vfs.FS, path string) (*Config, error) {
	data, err := fileSystem.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", constants.ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	raw := file{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %s", constants.ErrInvalidConfig, path, err.Error())
	}

	label := raw.DefaultLabel
	if label == "" {
		label = constants.DefaultLabel
	}
	kernels, err := decodeKernels(&raw.Kernels, raw.Default, label)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c := &Config{
		Path:       path,
		Bootloader: raw.Bootloader,
		BootDrive:  raw.BootDrive,
		Kernels:    kernels,
		Settings: schema.Settings{
			KernelDirectory: raw.KernelDirectory,
			UseInitrd:       true,
			Timeout:         constants.DefaultTimeout,
			EFI:             raw.EFI,
			Modules:         utils.CleanupSlice(raw.Modules),
			WholeDiskZfs:    raw.WholeDiskZfs,
			ZfsBootDataset:  strings.Trim(raw.ZfsBootDataset, "/"),
			Extlinux:        raw.Extlinux,
			LiloOptions:     raw.LiloOptions,
			Append:          raw.Append,
			AppendText:      raw.AppendText,
		},
	}
	if raw.UseInitrd != nil {
		c.Settings.UseInitrd = *raw.UseInitrd
	}
	if raw.Timeout != nil {
		c.Settings.Timeout = *raw.Timeout
	}

	var result *multierror.Error
	if err := c.applyEnv(fileSystem, constants.EnvFile); err != nil {
		result = multierror.Append(result, err)
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	utils.Log.Debug().Str("path", path).Str("bootloader", c.Bootloader).Int("kernels", len(c.Kernels)).Msg("Configuration loaded")
	return c, nil
}

func (c *Config) applyEnv(fileSystem vfs.FS, envFile string) error {
	env, err := utils.ReadEnv(fileSystem, envFile)
	if err != nil {
		return fmt.Errorf("%w: reading %s: %s", constants.ErrInvalidConfig, envFile, err.Error())
	}

	if v, ok := env[EnvBootloader]; ok {
		c.Bootloader = v
	}
	if v, ok := env[EnvDrive]; ok {
		c.BootDrive = v
	}
	if v, ok := env[EnvKernelDirectory]; ok {
		c.Settings.KernelDirectory = v
	}
	if v, ok := env[EnvTimeout]; ok {
		t, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", constants.ErrInvalidConfig, EnvTimeout, v)
		}
		c.Settings.Timeout = t
	}
	if len(env) > 0 {
		utils.Log.Debug().Str("file", envFile).Int("keys", len(env)).Msg("Applied environment overrides")
	}
	return nil
}

func (c *Config) setDefaults() {
	c.Bootloader = strings.ToLower(strings.TrimSpace(c.Bootloader))
	if c.Bootloader == "" {
		c.Bootloader = constants.Grub2
	}
	if c.Settings.KernelDirectory == "" {
		c.Settings.KernelDirectory = constants.KernelDir
	}
	c.Settings.KernelDirectory = strings.TrimSuffix(c.Settings.KernelDirectory, "/")

	e := &c.Settings.Extlinux
	if e.UI == "" {
		e.UI = constants.DefaultExtlinuxUI
	}
	if e.MenuTitle == "" {
		e.MenuTitle = constants.DefaultMenuTitle
	}
	if e.TitleColor == "" {
		e.TitleColor = constants.DefaultTitleColor
	}
	if e.BorderColor == "" {
		e.BorderColor = constants.DefaultBorderColor
	}
	if e.UnselectedColor == "" {
		e.UnselectedColor = constants.DefaultUnselColor
	}
	if c.Settings.LiloOptions == nil {
		c.Settings.LiloOptions = constants.DefaultLiloOptions()
	}
}

// validate reports every problem found, not only the first one.
func (c *Config) validate() error {
	var result *multierror.Error

	if _, ok := constants.DefaultFileNames()[c.Bootloader]; !ok {
		result = multierror.Append(result, fmt.Errorf("%w: %q", constants.ErrUnsupportedBootloader, c.Bootloader))
	}
	if c.Settings.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: timeout must not be negative, got %d", constants.ErrInvalidConfig, c.Settings.Timeout))
	}
	if c.Settings.WholeDiskZfs && c.Settings.ZfsBootDataset == "" {
		result = multierror.Append(result, fmt.Errorf("%w: wholeDiskZfs needs wholeDiskZfsBootPool", constants.ErrInvalidConfig))
	}
	if len(c.Kernels) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: no kernels configured", constants.ErrInvalidConfig))
	}

	var defaults []string
	for i, k := range c.Kernels {
		if k.Version == "" {
			result = multierror.Append(result, fmt.Errorf("%w: kernel %d has no version", constants.ErrInvalidConfig, i))
		}
		if k.IsDefault {
			defaults = append(defaults, k.Version)
		}
	}
	if len(defaults) > 1 {
		result = multierror.Append(result, fmt.Errorf("%w: %s", constants.ErrMultipleDefaults, strings.Join(defaults, ", ")))
	}

	return result.ErrorOrNil()
}

// FileName is the output file name for the configured bootloader.
func (c *Config) FileName() string {
	return constants.DefaultFileNames()[c.Bootloader]
}
