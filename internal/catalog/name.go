package catalog

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	titleIDTag  = regexp.MustCompile(`\[([0-9A-Fa-f]{16})\]`)
	versionTag  = regexp.MustCompile(`\[v(\d+)\]`)
)

// SanitizeName makes a catalog title safe to use as a file name.
func SanitizeName(name string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(name, "-"))
}

// ParseTitleID extracts the bracketed 16-hex title ID and optional [vN]
// version tag from a file name. version is -1 when absent.
func ParseTitleID(filename string) (id string, version int, ok bool) {
	m := titleIDTag.FindStringSubmatch(filename)
	if m == nil {
		return "", -1, false
	}
	id = strings.ToUpper(m[1])
	version = -1
	if vm := versionTag.FindStringSubmatch(filename); vm != nil {
		if v, err := strconv.Atoi(vm[1]); err == nil {
			version = v
		}
	}
	return id, version, true
}

// CanonicalName builds the normalized file name for a title: sanitized
// catalog name, title ID tag, version tag when known, original extension.
func CanonicalName(title, id string, version int, path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	verStr := ""
	if version >= 0 {
		verStr = fmt.Sprintf(" [v%d]", version)
	}
	return fmt.Sprintf("%s [%s]%s%s", SanitizeName(title), strings.ToUpper(id), verStr, ext)
}
