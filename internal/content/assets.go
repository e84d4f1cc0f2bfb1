package content

import (
	"io/fs"
	"os"
	"path"
	"strings"
)

// PlaceholderImage is served when an image reference cannot be resolved.
const PlaceholderImage = "/static/placeholder.svg"

// Assets resolves image references against the site's public files.
type Assets struct {
	fsys     fs.FS
	fallback string
}

// NewAssets resolves references relative to root, the directory the server
// mounts under "/".
func NewAssets(root string) *Assets {
	return NewAssetsFS(os.DirFS(root), PlaceholderImage)
}

// NewAssetsFS is NewAssets over an arbitrary file system.
func NewAssetsFS(fsys fs.FS, fallback string) *Assets {
	return &Assets{fsys: fsys, fallback: fallback}
}

// Image returns the public URL for ref, or the fallback when ref is empty
// or does not exist. Absolute URLs are returned as given.
func (a *Assets) Image(ref string) string {
	if ref == "" {
		return a.fallback
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}

	clean := strings.TrimPrefix(path.Clean("/"+ref), "/")
	if _, err := fs.Stat(a.fsys, clean); err != nil {
		return a.fallback
	}
	return "/" + clean
}
