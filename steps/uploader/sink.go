// Package uploader writes storage objects to a blob container. Each backend
// creates its container on demand and overwrites objects in place.
package uploader

import (
	"context"
	"fmt"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

// Sink is a blob container that pages are mirrored into.
type Sink interface {
	// EnsureContainer creates the container if it does not exist yet.
	EnsureContainer(ctx context.Context) error
	// Upload overwrites the object at obj.Path and attaches obj.Metadata.
	Upload(ctx context.Context, obj types.StorageObject) error
}

// Backend names a storage implementation.
type Backend string

const (
	BackendAzure Backend = "azure"
	BackendS3    Backend = "s3"
	BackendDrive Backend = "drive"
	BackendFS    Backend = "fs"
)

// Config selects and configures a backend.
type Config struct {
	Backend          Backend
	ConnectionString string
	S3BucketPrefix   string
	DriveProjectID   string
	FSRoot           string
}

// StorageError wraps any failure returned by a backend.
type StorageError struct {
	Backend Backend
	Op      string
	Path    string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// New creates the sink for container using the configured backend.
func New(ctx context.Context, cfg Config, container string) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch cfg.Backend {
	case BackendAzure, "":
		sink, err = NewAzureSink(cfg.ConnectionString, container)
	case BackendS3:
		sink, err = NewS3Sink(ctx, cfg.S3BucketPrefix+container)
	case BackendDrive:
		sink, err = NewDriveSink(ctx, cfg.DriveProjectID, container)
	case BackendFS:
		sink, err = NewFSSink(cfg.FSRoot, container)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// ContainerFor returns publicContainer for the distinguished public space and
// privateContainer for every other space.
func ContainerFor(space, publicSpace, publicContainer, privateContainer string) string {
	if space == publicSpace {
		return publicContainer
	}
	return privateContainer
}
