package export

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
)

// BlobStore uploads a single object to a remote bucket.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Mirror uploads every written dataset file to the blob store under prefix
// and returns the remote URIs.
func Mirror(ctx context.Context, store BlobStore, prefix string, paths []string) ([]string, error) {
	uris := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return uris, fmt.Errorf("read %s: %w", p, err)
		}
		name := filepath.Base(p)
		remote := name
		if prefix != "" {
			remote = prefix + "/" + name
		}
		uri, err := store.PutObject(ctx, remote, mime.TypeByExtension(filepath.Ext(name)), data)
		if err != nil {
			return uris, fmt.Errorf("mirror %s: %w", name, err)
		}
		uris = append(uris, uri)
	}
	return uris, nil
}
