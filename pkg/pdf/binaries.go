package pdf

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// officeBinaries are the LibreOffice entry points, most specific first.
var officeBinaries = []string{"soffice", "libreoffice"}

// findOffice searches PATH first, then the usual install locations of the
// current OS.
func findOffice() (string, bool) {
	for _, name := range officeBinaries {
		if p, ok := findBinary(name); ok {
			return p, true
		}
	}
	return "", false
}

func findBinary(name string) (string, bool) {
	if runtime.GOOS == "windows" && filepath.Ext(name) != ".exe" {
		name += ".exe"
	}

	if p, err := exec.LookPath(name); err == nil {
		return p, true
	}

	for _, dir := range officeDirs() {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func officeDirs() []string {
	switch runtime.GOOS {
	case "linux":
		return append([]string{
			"/usr/bin",
			"/usr/local/bin",
			"/snap/bin",
			"/usr/lib/libreoffice/program",
		}, globDirs("/opt/libreoffice*/program")...)
	case "darwin":
		return []string{
			"/Applications/LibreOffice.app/Contents/MacOS",
			"/opt/homebrew/bin",
			"/usr/local/bin",
		}
	case "windows":
		var dirs []string
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)"} {
			if pf := os.Getenv(env); pf != "" {
				dirs = append(dirs, filepath.Join(pf, "LibreOffice", "program"))
			}
		}
		return append(dirs, `C:\Program Files\LibreOffice\program`)
	default:
		return nil
	}
}

func globDirs(patterns ...string) []string {
	var dirs []string
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		dirs = append(dirs, matches...)
	}
	return dirs
}
