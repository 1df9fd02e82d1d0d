package uploader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
)

// AzureSink writes block blobs into one Azure Blob Storage container.
type AzureSink struct {
	client    *azblob.Client
	container string
}

// NewAzureSink connects with a storage account connection string.
func NewAzureSink(connectionString, container string) (*AzureSink, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("azure storage requires a connection string")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob service client: %w", err)
	}
	return &AzureSink{client: client, container: container}, nil
}

func (a *AzureSink) EnsureContainer(ctx context.Context) error {
	_, err := a.client.CreateContainer(ctx, a.container, nil)
	switch {
	case err == nil:
		slog.Info("created container", slog.String("container", a.container))
		return nil
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists):
		slog.Debug("container already exists", slog.String("container", a.container))
		return nil
	default:
		return &StorageError{Backend: BackendAzure, Op: "create container", Path: a.container, Err: err}
	}
}

// Upload replaces the blob content and its metadata in a single request.
func (a *AzureSink) Upload(ctx context.Context, obj types.StorageObject) error {
	metadata := make(map[string]*string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		metadata[k] = to.Ptr(v)
	}

	opts := &azblob.UploadBufferOptions{Metadata: metadata}
	if obj.ContentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(obj.ContentType)}
	}

	if _, err := a.client.UploadBuffer(ctx, a.container, obj.Path, obj.Content, opts); err != nil {
		return &StorageError{Backend: BackendAzure, Op: "upload", Path: obj.Path, Err: err}
	}
	return nil
}
