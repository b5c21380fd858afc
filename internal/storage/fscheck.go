package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fuse is listed because sshfs and most FUSE mounts deliver no inotify events
// for remote writes.
var networkFilesystems = map[string]struct{}{
	"9p":     {},
	"afpfs":  {},
	"afs":    {},
	"ceph":   {},
	"cifs":   {},
	"fuse":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// NetworkFilesystem reports the filesystem type under path (or its nearest
// existing parent) and whether it is a network mount. The dispatcher uses it
// to warn when the spool lives where inotify events do not arrive.
func NetworkFilesystem(path string) (string, bool, error) {
	return networkFilesystemWithDetector(path, detectFilesystemType)
}

func networkFilesystemWithDetector(path string, detector func(string) (string, error)) (string, bool, error) {
	inspectPath, err := nearestExistingPath(path)
	if err != nil {
		return "", false, fmt.Errorf("resolve path %q: %w", path, err)
	}
	fsType, err := detector(inspectPath)
	if err != nil {
		return "", false, fmt.Errorf("detect filesystem for %q: %w", inspectPath, err)
	}
	return fsType, isNetworkFilesystem(fsType), nil
}

// validateSQLiteFilesystem rejects journal paths on network filesystems, where
// flock-based SQLite locking is unreliable.
func validateSQLiteFilesystem(path string) error {
	return validateSQLiteFilesystemWithDetector(path, detectFilesystemType)
}

func validateSQLiteFilesystemWithDetector(path string, detector func(string) (string, error)) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	fsType, network, err := networkFilesystemWithDetector(path, detector)
	if err != nil {
		return err
	}
	if network {
		return fmt.Errorf(
			"database path %q is on network filesystem %q; SQLite requires a local filesystem for reliable locking. Use a local path via journal.path (or --journal /path/to/local/journal.db)",
			path,
			fsType,
		)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	candidate := absPath
	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}

		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", absPath)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	normalized := strings.TrimSpace(strings.ToLower(fsType))
	_, found := networkFilesystems[normalized]
	return found
}
