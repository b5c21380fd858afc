package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeBlake3HashIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  parallelism: 4\n"), 0600); err != nil {
		t.Fatal(err)
	}

	first, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}
	second, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}
	if first != second {
		t.Fatalf("hash changed between calls: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("len(hash) = %d, want 64 hex chars", len(first))
	}
}

func TestVerifyFileHashMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0600); err != nil {
		t.Fatal(err)
	}

	err := VerifyFileHash(path, strings.Repeat("0", 64))
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("VerifyFileHash() error = %v, want hash mismatch", err)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runner.yaml")
	if err := os.WriteFile(path, []byte("stats:\n  interval: 30s\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := WriteSidecar(path); err != nil {
		t.Fatalf("WriteSidecar() failed: %v", err)
	}
	if err := verifySidecarHash(path); err != nil {
		t.Fatalf("verifySidecarHash() after write: %v", err)
	}

	if err := os.WriteFile(path, []byte("stats:\n  interval: 10s\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := verifySidecarHash(path); err == nil {
		t.Fatal("verifySidecarHash() accepted an edited file")
	}
}
