package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// DevDirName is the directory under the system temp dir used by the sandbox.
const DevDirName = "veneer-dev"

// IsDevRun checks if the current process is running via `go run` or `go test`.
// It relies on the fact that these commands build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolvePath determines the actual database directory. When forceTemp is
// set, paths outside the system temp dir are re-rooted under DevDirName.
func ResolvePath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	// Paths already under the temp dir (e.g. t.TempDir()) are trusted as is.
	clean := filepath.Clean(userPath)
	rel, err := filepath.Rel(os.TempDir(), clean)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return clean
	}

	sub := filepath.Base(userPath)
	if userPath == "" || sub == "." || sub == string(os.PathSeparator) {
		sub = "default"
	}
	return filepath.Join(os.TempDir(), DevDirName, sub)
}
