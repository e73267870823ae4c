package ctfd

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout places challenges under root/<host>/<category>/<name>, every
// component sanitized. An empty category is left out of the path.
type Layout struct {
	Root string
	Host string
}

func (l Layout) ChallengeDir(chall *Challenge) string {
	name := SanitizeFileName(chall.Name)
	if strings.Trim(name, ". ") == "" {
		name = "unnamed"
	}
	category := SanitizeFileName(chall.Category)
	if strings.Trim(category, ". ") == "" {
		category = ""
	}
	return filepath.Join(l.Root, SanitizeFileName(l.Host), category, name)
}

// Exists reports whether dir is already present on disk.
func (l Layout) Exists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
