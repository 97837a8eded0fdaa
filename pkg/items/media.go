package items

import "strings"

// MediaURL resolves an image reference stored on an item. Absolute http(s)
// URLs are returned unchanged; storage-relative paths are served from
// "<apiBase>/media/". An empty path yields an empty string.
func MediaURL(apiBase, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(apiBase, "/") + "/media/" + strings.TrimLeft(path, "/")
}
