package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// IsDevRun checks if the current process is running via `go run` or `go test`.
// Both build their binaries in temporary directories.
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

// ResolveNotesPath applies the sandbox rule. Without forceTemp the path is
// returned unchanged. With it, paths outside the system temp directory are
// re-rooted under <tmp>/jotter-dev/<base>.
func ResolveNotesPath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && !strings.HasPrefix(rel, "..") {
		return clean
	}

	sub := filepath.Base(userPath)
	if userPath == "" || sub == "." || sub == string(os.PathSeparator) {
		sub = "default"
	}
	return filepath.Join(os.TempDir(), "jotter-dev", sub)
}
