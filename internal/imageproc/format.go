package imageproc

import "strings"

// CanonicalExtension returns the file extension (without leading dot) a
// target format's cache filename should use, per spec §4.6's naming
// convention.
func CanonicalExtension(format Format, sourceExt string) string {
	switch format {
	case FormatJPEG:
		return "jpg"
	case FormatWebP:
		return "webp"
	case FormatPNG:
		return "png"
	case FormatOriginal:
		return strings.TrimPrefix(sourceExt, ".")
	default:
		return strings.TrimPrefix(sourceExt, ".")
	}
}

// ParseFormat maps a configuration string (e.g. "jpeg") to a Format,
// defaulting to FormatJPEG for an empty or unrecognized value.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "jpeg", "jpg":
		return FormatJPEG
	case "webp":
		return FormatWebP
	case "png":
		return FormatPNG
	case "original":
		return FormatOriginal
	default:
		return FormatJPEG
	}
}
