package watcher

import (
	"os"
	"path/filepath"
)

// FilesystemType is a coarse classification of the filesystem holding the
// watched file.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

// isRemoteFilesystem reports whether inotify events for writes made on
// other hosts can be missed. FUSE mounts see their own writes, so they
// stay on fsnotify.
func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS:
		return true
	}
	return false
}

// detectFilesystemTypeFunc is swapped in tests.
var detectFilesystemTypeFunc = DetectFilesystemType

// DetectFilesystemType classifies the filesystem holding path. A file that
// does not exist yet is classified by its parent directory.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	if _, err := os.Stat(path); err != nil {
		path = filepath.Dir(path)
	}
	return statFilesystemType(path)
}
