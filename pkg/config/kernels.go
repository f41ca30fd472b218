package config

import (
	"fmt"
	"strconv"

	"github.com/kairos-io/bliss-boot/internal/constants"
	"github.com/kairos-io/bliss-boot/pkg/schema"
	"gopkg.in/yaml.v3"
)

type kernelRecord struct {
	Label   string `yaml:"label"`
	Version string `yaml:"version"`
	Default bool   `yaml:"default"`
	Kernel  string `yaml:"kernel"`
	Initrd  string `yaml:"initrd"`
	Options string `yaml:"options"`
}

// decodeKernels accepts the three layouts of the kernels key:
//
//	kernels:                      # version: options, default chosen by the top level default key
//	  6.1.0: root=/dev/sda1
//
//	kernels:                      # label, version, default, kernel, initrd, options
//	  - [Gentoo, 6.1.0, 1, vmlinuz, initrd, root=/dev/sda1]
//
//	kernels:
//	  - {label: Gentoo, version: 6.1.0, default: true, options: root=/dev/sda1}
func decodeKernels(node *yaml.Node, defaultVersion, label string) ([]schema.BootEntry, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: kernels must be a mapping or a list (line %d)", constants.ErrInvalidConfig, node.Line)
	case yaml.MappingNode:
		return decodeKernelMap(node, defaultVersion, label)
	case yaml.SequenceNode:
		var entries []schema.BootEntry
		for _, item := range node.Content {
			var entry schema.BootEntry
			var err error
			switch item.Kind {
			case yaml.SequenceNode:
				entry, err = decodeKernelTuple(item)
			case yaml.MappingNode:
				entry, err = decodeKernelRecord(item, label)
			default:
				err = fmt.Errorf("%w: kernel entry must be a list or a mapping (line %d)", constants.ErrInvalidConfig, item.Line)
			}
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("%w: unexpected kernels value (line %d)", constants.ErrInvalidConfig, node.Line)
	}
}

func decodeKernelMap(node *yaml.Node, defaultVersion, label string) ([]schema.BootEntry, error) {
	var entries []schema.BootEntry
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: options for kernel %s must be a string (line %d)", constants.ErrInvalidConfig, key.Value, value.Line)
		}
		entries = append(entries, schema.BootEntry{
			Label:      label,
			Version:    key.Value,
			IsDefault:  key.Value == defaultVersion,
			KernelFile: constants.DefaultKernelFile,
			InitrdFile: constants.DefaultInitrdFile,
			Options:    value.Value,
		})
	}
	return entries, nil
}

func decodeKernelTuple(node *yaml.Node) (schema.BootEntry, error) {
	if len(node.Content) != 6 {
		return schema.BootEntry{}, fmt.Errorf("%w: kernel tuple needs 6 fields, got %d (line %d)", constants.ErrInvalidConfig, len(node.Content), node.Line)
	}
	f := make([]string, 0, 6)
	for _, n := range node.Content {
		if n.Kind != yaml.ScalarNode {
			return schema.BootEntry{}, fmt.Errorf("%w: kernel tuple fields must be scalars (line %d)", constants.ErrInvalidConfig, n.Line)
		}
		f = append(f, n.Value)
	}

	isDefault, err := strconv.ParseBool(f[2])
	if err != nil {
		return schema.BootEntry{}, fmt.Errorf("%w: default flag %q of kernel %s is not 0/1 (line %d)", constants.ErrInvalidConfig, f[2], f[1], node.Line)
	}

	return schema.BootEntry{
		Label:      f[0],
		Version:    f[1],
		IsDefault:  isDefault,
		KernelFile: f[3],
		InitrdFile: f[4],
		Options:    f[5],
	}, nil
}

func decodeKernelRecord(node *yaml.Node, label string) (schema.BootEntry, error) {
	r := kernelRecord{}
	if err := node.Decode(&r); err != nil {
		return schema.BootEntry{}, fmt.Errorf("%w: kernel entry at line %d: %s", constants.ErrInvalidConfig, node.Line, err.Error())
	}
	if r.Label == "" {
		r.Label = label
	}
	if r.Kernel == "" {
		r.Kernel = constants.DefaultKernelFile
	}
	if r.Initrd == "" {
		r.Initrd = constants.DefaultInitrdFile
	}

	return schema.BootEntry{
		Label:      r.Label,
		Version:    r.Version,
		IsDefault:  r.Default,
		KernelFile: r.Kernel,
		InitrdFile: r.Initrd,
		Options:    r.Options,
	}, nil
}
