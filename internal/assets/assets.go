// Package assets resolves build-time static assets to bytes and content
// types for the serve-asset actions.
package assets

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// Asset is one resolved static asset.
type Asset struct {
	Content     []byte
	ContentType string
	ModTime     time.Time
}

// Resolver supplies bytes and content type for the serve-asset and
// serve-permanent-asset actions.
type Resolver interface {
	Resolve(ctx context.Context, assetPath string) (*Asset, error)
}

// FSResolver resolves assets from an fs.FS populated at build time.
type FSResolver struct {
	fsys fs.FS
}

// NewFSResolver creates a resolver backed by fsys.
func NewFSResolver(fsys fs.FS) *FSResolver {
	return &FSResolver{fsys: fsys}
}

// Resolve loads the asset at assetPath. A missing or escaping path yields
// an asset-not-found error.
func (r *FSResolver) Resolve(ctx context.Context, assetPath string) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, ok := cleanPath(assetPath)
	if !ok {
		return nil, util.NewAssetError(assetPath, fs.ErrNotExist)
	}

	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, util.NewAssetError(assetPath, err)
		}
		return nil, util.WrapError(err, "failed to read asset "+assetPath)
	}

	var modTime time.Time
	if info, statErr := fs.Stat(r.fsys, name); statErr == nil {
		modTime = info.ModTime()
	}

	return &Asset{
		Content:     data,
		ContentType: detectContentType(name, data),
		ModTime:     modTime,
	}, nil
}

// cleanPath normalizes a request path into an fs.FS-relative name,
// rejecting traversal outside the asset root.
func cleanPath(p string) (string, bool) {
	p = path.Clean("/" + p)
	if strings.Contains(p, "..") {
		return "", false
	}
	name := strings.TrimPrefix(p, "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

// detectContentType resolves a content type from the file extension,
// falling back to content sniffing.
func detectContentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
