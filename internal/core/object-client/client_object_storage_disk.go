package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/ragline/internal/core"
)

// DiskClient emulates object storage with one directory per container
// below root. It backs the local stack.
type DiskClient struct {
	root string
}

func NewDiskClient(root string) (*DiskClient, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskClient{root: abs}, nil
}

// UploadFile writes the object atomically and returns a file:// URL whose
// last two segments are the container and the name.
func (c *DiskClient) UploadFile(ctx context.Context, container, name string, data []byte, _ string) (string, error) {
	path, err := c.path(container, name)
	if err != nil {
		return "", err
	}
	if err := c.EnsureContainer(ctx, container); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("disk upload failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("disk upload failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("disk upload failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("disk upload failed: %w", err)
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String(), nil
}

func (c *DiskClient) GetFile(ctx context.Context, container, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.path(container, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrObjectNotFound, container, name)
	}
	if err != nil {
		return nil, fmt.Errorf("disk get failed: %w", err)
	}
	return data, nil
}

func (c *DiskClient) EnsureContainer(_ context.Context, container string) error {
	if err := validSegment(container); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(c.root, container), 0o755); err != nil {
		return fmt.Errorf("create container %s: %w", container, err)
	}
	return nil
}

func (c *DiskClient) path(container, name string) (string, error) {
	if err := validSegment(container); err != nil {
		return "", err
	}
	if err := validSegment(name); err != nil {
		return "", err
	}
	return filepath.Join(c.root, container, name), nil
}

// validSegment keeps container and object names inside the storage root.
func validSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: bad object path segment %q", core.ErrInvalidInput, s)
	}
	return nil
}

var _ core.ObjectClient = (*DiskClient)(nil)
