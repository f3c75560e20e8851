//go:build linux

package watcher

import "golang.org/x/sys/unix"

// Superblock magic numbers from statfs(2).
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517b
	cifsMagic      = 0xff534d42
	smb2Magic      = 0xfe534d42
	fuseSuperMagic = 0x65735546
)

func statFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	return classifyMagic(uint32(st.Type))
}

func classifyMagic(magic uint32) FilesystemType {
	switch magic {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagic, smb2Magic:
		return FSTypeSMB
	case fuseSuperMagic:
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
