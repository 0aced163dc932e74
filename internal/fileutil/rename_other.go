//go:build !linux

package fileutil

import "errors"

func renameNoReplace(src, dst string) error {
	return errors.ErrUnsupported
}
