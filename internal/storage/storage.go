// Package storage keeps leave supporting documents in object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/leave-notifier/apiserver/config"
)

// ErrDisabled is returned when no object-storage backend is configured.
var ErrDisabled = errors.New("attachment storage is not configured")

// ObjectStore defines common object operations across backends.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Attachments stores leave supporting documents under predictable
// per-leave keys. A nil backend disables the feature.
type Attachments struct {
	store ObjectStore
}

// NewAttachments wraps an object store. Pass nil to disable uploads.
func NewAttachments(store ObjectStore) *Attachments {
	return &Attachments{store: store}
}

// Enabled reports whether a backend is configured.
func (a *Attachments) Enabled() bool {
	return a.store != nil
}

// EnsureBucket ensures the configured bucket exists.
func (a *Attachments) EnsureBucket(ctx context.Context) error {
	if a.store == nil {
		return ErrDisabled
	}
	return a.store.EnsureBucket(ctx)
}

// Put uploads a supporting document for the given leave and returns
// the object key to persist on the record.
func (a *Attachments) Put(ctx context.Context, leaveID int, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if a.store == nil {
		return "", ErrDisabled
	}
	key := Key(leaveID, filename)
	if err := a.store.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Get opens a reader for a previously uploaded document.
func (a *Attachments) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if a.store == nil {
		return nil, ErrDisabled
	}
	return a.store.Get(ctx, key)
}

// Delete removes a previously uploaded document.
func (a *Attachments) Delete(ctx context.Context, key string) error {
	if a.store == nil {
		return ErrDisabled
	}
	return a.store.Delete(ctx, key)
}

// Key builds the object key for a leave document. Only the base name
// of the client-supplied filename is kept.
func Key(leaveID int, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("leaves/%d/%s", leaveID, name)
}

// NewObjectStore selects and constructs a backend from config. It
// returns a nil ObjectStore when the backend is "none".
func NewObjectStore(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Backend {
	case "minio":
		return NewMinioStore(cfg.Minio)
	case "gcs":
		return NewGCSStore(ctx, cfg.GCS)
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
