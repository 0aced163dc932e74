package fileutil

import "golang.org/x/sys/unix"

// renameNoReplace renames src to dst unless dst exists. EINVAL and ENOSYS
// mean the filesystem or kernel lacks RENAME_NOREPLACE.
func renameNoReplace(src, dst string) error {
	return unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
}
