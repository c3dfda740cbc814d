// Package fileutil provides file helpers shared by the storage packages.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/JuniperScript/core/errors"
)

// Injectable for tests.
var (
	osRename     = os.Rename
	osCreateTemp = os.CreateTemp
	osMkdirAll   = os.MkdirAll
)

// WriteFileAtomic writes data to path through a temporary file in the same
// directory and renames it into place, so readers never see a partial file.
// Missing parent directories are created.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := osMkdirAll(dir, 0o755); err != nil {
		return errors.NewIO("mkdir", dir, err)
	}

	tmp, err := osCreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("write", tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("chmod", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("close", tmpPath, err)
	}

	// Rename to final path (atomic on POSIX)
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("rename", path, err)
	}
	return nil
}
