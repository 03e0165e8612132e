package sync

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

const (
	maxSiteNameLen   = 63
	maxUploadNameLen = 255
	maxFolderDepth   = 5

	// MaxUploadSize is the hard limit for upload file bodies.
	MaxUploadSize = 10 * 1024 * 1024
)

var (
	siteNameRe   = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	folderNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

	// full-width punctuation the server sanitizes out of upload names
	fullWidthPunct = "＜＞：；＂＇？＊｜／＼（）"
)

var windowsReserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// ValidationResult is a pure decision; validators never touch I/O or state.
type ValidationResult struct {
	Valid  bool
	Reason string
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Reason: fmt.Sprintf(format, args...)}
}

func isWindowsReserved(name string) bool {
	stem := name
	if idx := strings.IndexByte(stem, '.'); idx >= 0 {
		stem = stem[:idx]
	}
	_, reserved := windowsReserved[strings.ToUpper(stem)]
	return reserved
}

// ValidateSiteName checks a site name; a trailing .html is stripped first.
func ValidateSiteName(name string) ValidationResult {
	name = strings.TrimSuffix(name, ".html")

	if name == "" {
		return invalid("site name is empty")
	}
	if len(name) > maxSiteNameLen {
		return invalid("site name exceeds %d characters", maxSiteNameLen)
	}
	if !siteNameRe.MatchString(name) {
		return invalid("site name %q may only contain letters, digits and hyphens", name)
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return invalid("site name %q may not start or end with a hyphen", name)
	}
	if strings.Contains(name, "--") {
		return invalid("site name %q may not contain consecutive hyphens", name)
	}
	if isWindowsReserved(name) {
		return invalid("site name %q is a reserved name", name)
	}
	return valid()
}

// ValidateFolderName checks a single folder segment.
func ValidateFolderName(name string) ValidationResult {
	if name == "" {
		return invalid("folder name is empty")
	}
	if !folderNameRe.MatchString(name) {
		return invalid("folder name %q may only contain lowercase letters, digits, hyphens and underscores", name)
	}
	if isWindowsReserved(name) {
		return invalid("folder name %q is a reserved name", name)
	}
	return valid()
}

// ValidateSitePath checks a full slash-relative site path, folders included.
func ValidateSitePath(relPath string) ValidationResult {
	dir, file := path.Split(relPath)

	segments := splitFolders(dir)
	if len(segments) > maxFolderDepth {
		return invalid("path %q exceeds maximum folder depth of %d", relPath, maxFolderDepth)
	}
	for _, segment := range segments {
		if res := ValidateFolderName(segment); !res.Valid {
			return res
		}
	}

	return ValidateSiteName(file)
}

// ValidateUploadName checks an upload filename. Uploads are permissive:
// any extension, but no control characters, separators, trailing dots,
// reserved names, or the full-width punctuation the server strips.
func ValidateUploadName(name string) ValidationResult {
	if name == "" {
		return invalid("upload name is empty")
	}
	if len(name) > maxUploadNameLen {
		return invalid("upload name exceeds %d bytes", maxUploadNameLen)
	}
	if strings.ContainsAny(name, "/\\") {
		return invalid("upload name %q may not contain path separators", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			return invalid("upload name contains control characters")
		}
		if strings.ContainsRune(fullWidthPunct, r) {
			return invalid("upload name %q contains disallowed punctuation", name)
		}
	}
	if strings.HasSuffix(name, ".") {
		return invalid("upload name %q may not end with a dot", name)
	}
	if isWindowsReserved(name) {
		return invalid("upload name %q is a reserved name", name)
	}
	return valid()
}

// ValidateUploadPath checks a full slash-relative upload path.
func ValidateUploadPath(relPath string) ValidationResult {
	dir, file := path.Split(relPath)

	segments := splitFolders(dir)
	if len(segments) > maxFolderDepth {
		return invalid("path %q exceeds maximum folder depth of %d", relPath, maxFolderDepth)
	}
	for _, segment := range segments {
		if res := ValidateFolderName(segment); !res.Valid {
			return res
		}
	}

	return ValidateUploadName(file)
}

func splitFolders(dir string) []string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	return strings.Split(dir, "/")
}
