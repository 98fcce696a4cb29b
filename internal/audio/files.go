package audio

import (
	"errors"
	"io/fs"
	"os"

	"maitri/internal/ports"
)

// OSFiles resolves storage locators as plain filesystem paths.
type OSFiles struct{}

func (OSFiles) Stat(locator string) (ports.FileInfo, error) {
	info, err := os.Stat(locator)
	if errors.Is(err, fs.ErrNotExist) {
		return ports.FileInfo{}, nil
	}
	if err != nil {
		return ports.FileInfo{}, err
	}
	if info.IsDir() {
		return ports.FileInfo{}, nil
	}
	return ports.FileInfo{Exists: true, Size: info.Size()}, nil
}

func (OSFiles) Remove(locator string) error {
	err := os.Remove(locator)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
