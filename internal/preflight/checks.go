package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// CheckDirectoryAccess passes when path is a directory the current user can
// list, create files in and traverse.
func CheckDirectoryAccess(name, path string) Result {
	result := Result{Name: name}
	if err := directoryAccess(path); err != nil {
		result.Detail = fmt.Sprintf("%s (error: %v)", path, err)
		return result
	}
	result.Passed = true
	result.Detail = path + " (read/write ok)"
	return result
}

func directoryAccess(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errors.New("does not exist")
	case err != nil:
		return fmt.Errorf("stat: %w", err)
	case !info.IsDir():
		return errors.New("is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("insufficient permissions: %w", err)
	}
	return nil
}
