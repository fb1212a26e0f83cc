package normalize

import "strings"

// AbsoluteHTTPS makes an image URL absolute https. Protocol-relative and
// http URLs are upgraded; root-relative paths are resolved against base
// when given. Anything else yields "".
func AbsoluteHTTPS(raw, base string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"):
		return "https://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "/") && base != "":
		return strings.TrimSuffix(base, "/") + raw
	default:
		return ""
	}
}
