package constants

import (
	"regexp"
	"strings"
)

// AllowedExtensions holds the file extensions the extraction pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFileName makes a file name safe for use as a directory name:
// filesystem-invalid characters become underscores and any extension is
// stripped.
func SanitizeFileName(name string) string {
	sanitized := invalidPathChars.ReplaceAllString(name, "_")
	if i := strings.LastIndex(sanitized, "."); i > 0 {
		sanitized = sanitized[:i]
	}
	return sanitized
}
