package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/document-locker/locker/internal/logging"
)

// Azure stores objects as block blobs in one container.
type Azure struct {
	client    *azblob.Client
	container string
	logger    *logging.Logger
	retry     retryPolicy
}

// NewAzure connects with a storage account connection string and creates
// the container when it does not exist yet.
func NewAzure(ctx context.Context, connectionString, container string, logger *logging.Logger) (*Azure, error) {
	if connectionString == "" || container == "" {
		return nil, errors.New("azure connection string and container are required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Telemetry: policy.TelemetryOptions{ApplicationID: "locker-server"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("failed to create container %s: %w", container, err)
	}
	logger.Info().Str("container", container).Msg("Using Azure Blob storage")
	return &Azure{client: client, container: container, logger: logger, retry: defaultRetryPolicy}, nil
}

func (b *Azure) Name() string     { return "azure" }
func (b *Azure) Location() string { return b.container }

func (b *Azure) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error {
	opts := &azblob.UploadStreamOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)}
	}
	rewind := rewindable(r)
	policy := b.retry
	if rewind == nil {
		policy.Attempts = 1
	}
	err := withRetry(ctx, policy, b.logger, "put "+key, func() error {
		if rewind != nil {
			if err := rewind(); err != nil {
				return err
			}
		}
		_, err := b.client.UploadStream(ctx, b.container, key, r, opts)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (b *Azure) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	var resp azblob.DownloadStreamResponse
	err := withRetry(ctx, b.retry, b.logger, "get "+key, func() (err error) {
		resp, err = b.client.DownloadStream(ctx, b.container, key, nil)
		return err
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, fmt.Errorf("failed to download %s: %w", key, err)
	}
	obj := Object{Key: key}
	if resp.ContentLength != nil {
		obj.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	if resp.LastModified != nil {
		obj.LastModified = resp.LastModified.UTC()
	}
	return resp.Body, obj, nil
}

func (b *Azure) Stat(ctx context.Context, key string) (Object, error) {
	blobClient := b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(key)
	var resp blob.GetPropertiesResponse
	err := withRetry(ctx, b.retry, b.logger, "stat "+key, func() (err error) {
		resp, err = blobClient.GetProperties(ctx, nil)
		return err
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	obj := Object{Key: key}
	if resp.ContentLength != nil {
		obj.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	}
	if resp.LastModified != nil {
		obj.LastModified = resp.LastModified.UTC()
	}
	return obj, nil
}

func (b *Azure) Delete(ctx context.Context, key string) error {
	err := withRetry(ctx, b.retry, b.logger, "delete "+key, func() error {
		_, err := b.client.DeleteBlob(ctx, b.container, key, nil)
		return err
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (b *Azure) List(ctx context.Context) ([]Object, error) {
	var objs []Object
	pager := b.client.NewListBlobsFlatPager(b.container, nil)
	for pager.More() {
		var page azblob.ListBlobsFlatResponse
		err := withRetry(ctx, b.retry, b.logger, "list", func() (err error) {
			page, err = pager.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list container %s: %w", b.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := Object{Key: *item.Name}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					obj.Size = *p.ContentLength
				}
				if p.ContentType != nil {
					obj.ContentType = *p.ContentType
				}
				if p.LastModified != nil {
					obj.LastModified = p.LastModified.UTC()
				}
			}
			objs = append(objs, obj)
		}
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	return objs, nil
}
