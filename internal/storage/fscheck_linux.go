//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs magic numbers, from linux/magic.h.
var linuxFilesystemNames = map[uint64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
	0x01021997: "9p",
	0x00C36400: "ceph",
	0x5346414F: "afs",
	0x65735546: "fuse",
	0xEF53:     "ext4",
	0x58465342: "xfs",
	0x9123683E: "btrfs",
	0x01021994: "tmpfs",
	0x794C7630: "overlayfs",
	0x2FC12FC1: "zfs",
}

func detectFilesystemType(path string) (string, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs %q: %w", path, err)
	}
	magic := uint64(st.Type) & 0xFFFFFFFF
	if name, ok := linuxFilesystemNames[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("0x%x", magic), nil
}
