package platform

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/aretw0/veneer/pkg/adapters/fs"
)

// ConfigFileName is the CLI configuration file looked up by FindRoot.
const ConfigFileName = "veneer.yaml"

// ErrRootNotFound is returned by FindRoot when no indicator is found up to
// the filesystem root.
var ErrRootNotFound = errors.New("root not found")

// FindRoot recursively looks upwards for a database root indicator.
// Indicators are: the fs system directory or a veneer.yaml file.
// If found, returns the absolute path to the root.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if isDir(dir, fs.DefaultSystemDir) || isFile(dir, ConfigFileName) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrRootNotFound
}

func isDir(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.IsDir()
}

func isFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.Mode().IsRegular()
}
