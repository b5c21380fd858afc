//go:build !darwin && !linux

package storage

import (
	"fmt"
	"runtime"
)

func detectFilesystemType(string) (string, error) {
	return "", fmt.Errorf("cannot detect filesystem type on %s", runtime.GOOS)
}
