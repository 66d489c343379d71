package gfs

import (
	"context"
	"io"
)

// ReadFile reads path's entire content in one call.
func (fs *Filesystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	ch, err := fs.NewByteChannel(ctx, path, NewOpenOptions(OpenRead))
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	return io.ReadAll(ch)
}

// WriteFile replaces path's entire content in one call, creating it
// if it does not already exist.
func (fs *Filesystem) WriteFile(ctx context.Context, path string, data []byte) error {
	ch, err := fs.NewByteChannel(ctx, path, NewOpenOptions(OpenWrite, OpenCreate, OpenTruncate))
	if err != nil {
		return err
	}
	defer ch.Close()
	_, err = ch.Write(data)
	return err
}

// Create creates an empty file at path, failing if it already exists.
func (fs *Filesystem) Create(ctx context.Context, path string) error {
	ch, err := fs.NewByteChannel(ctx, path, NewOpenOptions(OpenWrite, OpenCreateNew))
	if err != nil {
		return err
	}
	return ch.Close()
}
