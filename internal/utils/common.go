package utils

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/twpayne/go-vfs/v4"
)

// ReadEnv parses a KEY=VALUE file. A missing file yields an empty map.
func ReadEnv(fileSystem vfs.FS, file string) (map[string]string, error) {
	f, err := fileSystem.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return godotenv.Parse(f)
}

// CreateIfNotExists makes sure the directory exists, creating parents as needed.
func CreateIfNotExists(fileSystem vfs.FS, path string) error {
	if _, err := fileSystem.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return vfs.MkdirAll(fileSystem, path, 0o755)
	}

	return nil
}

// Exists reports whether the path exists. Stat errors other than not-exist count as existing
// so callers never overwrite something they could not inspect.
func Exists(fileSystem vfs.FS, path string) bool {
	_, err := fileSystem.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// UniqueSlice removes duplicates keeping the first occurrence, so order is preserved.
func UniqueSlice(slice []string) []string {
	keys := make(map[string]bool)
	var list []string
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// CleanupSlice drops empty and whitespace-only values.
func CleanupSlice(slice []string) []string {
	var cleanSlice []string
	for _, item := range slice {
		if strings.TrimSpace(item) == "" {
			continue
		}
		cleanSlice = append(cleanSlice, strings.TrimSpace(item))
	}
	return cleanSlice
}

// IsRoot reports whether we run with an effective uid of 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}
