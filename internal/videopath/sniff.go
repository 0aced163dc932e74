package videopath

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ResolveExtension determines the extension for an asset file. A reachable
// file is content-sniffed; otherwise, or when sniffing yields no video type,
// the extension is parsed from the stored name, falling back to .mp4.
func ResolveExtension(absPath, storedName string) string {
	if ext := SniffExtension(absPath); ext != "" {
		return ext
	}
	if ext := ExtensionFromName(storedName); ext != "" {
		return ext
	}
	return DefaultExtension
}

// SniffExtension returns the extension of the video container found in the
// file's content, or "" when the file is unreadable or not a video.
func SniffExtension(absPath string) string {
	if strings.TrimSpace(absPath) == "" {
		return ""
	}
	mtype, err := mimetype.DetectFile(absPath)
	if err != nil || mtype == nil {
		return ""
	}
	if !strings.HasPrefix(mtype.String(), "video/") {
		return ""
	}
	return strings.ToLower(mtype.Extension())
}
