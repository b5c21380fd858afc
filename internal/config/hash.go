package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyFileHash verifies a file against an expected BLAKE3 hash.
func VerifyFileHash(filePath, expectedHash string) error {
	actualHash, err := ComputeBlake3Hash(filePath)
	if err != nil {
		return fmt.Errorf("failed to compute hash: %w", err)
	}

	if actualHash != expectedHash {
		return fmt.Errorf("hash mismatch for %s: expected %s, got %s",
			filepath.Base(filePath), expectedHash, actualHash)
	}

	return nil
}

// SidecarPath is where a pinned checksum for configPath lives.
func SidecarPath(configPath string) string {
	return configPath + ".b3"
}

// WriteSidecar pins the current content of configPath.
func WriteSidecar(configPath string) (string, error) {
	hash, err := ComputeBlake3Hash(configPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(SidecarPath(configPath), []byte(hash+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksum: %w", err)
	}
	return hash, nil
}

// verifySidecarHash checks configPath against its sidecar when one exists.
// The sidecar holds the hex digest, optionally followed by the file name.
func verifySidecarHash(configPath string) error {
	data, err := os.ReadFile(SidecarPath(configPath))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read checksum: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return fmt.Errorf("checksum file %s is empty", SidecarPath(configPath))
	}
	return VerifyFileHash(configPath, fields[0])
}
