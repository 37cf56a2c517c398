package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/dvloznov/blobshare/internal/logger"
)

// AzureConfig holds the credentials of a storage account.
type AzureConfig struct {
	AccountName string
	AccountKey  string

	// ServiceURL defaults to https://<account>.blob.core.windows.net.
	ServiceURL string
}

// Azure is a Store backed by Azure Blob Storage.
type Azure struct {
	client *azblob.Client
}

// NewAzure creates a client authenticated with the account's shared key.
func NewAzure(cfg AzureConfig) (*Azure, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob service client: %w", err)
	}

	return &Azure{client: client}, nil
}

// CreateContainer implements Store. New containers allow anonymous reads of
// blobs but not listing.
func (a *Azure) CreateContainer(ctx context.Context, name string) error {
	_, err := a.client.CreateContainer(ctx, name, &azblob.CreateContainerOptions{
		Access: to.Ptr(container.PublicAccessTypeBlob),
	})
	if err != nil {
		if isAzureConflict(err) {
			return fmt.Errorf("create container %q: %w", name, ErrContainerExists)
		}
		return fmt.Errorf("create container %q: %w", name, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("container", name).Msg("Created Azure container")
	return nil
}

// Upload implements Store.
func (a *Azure) Upload(ctx context.Context, obj Object, progress ProgressFunc) error {
	opts := &azblob.UploadFileOptions{}
	if obj.ContentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: to.Ptr(obj.ContentType)}
	}
	if progress != nil {
		opts.Progress = func(bytesTransferred int64) {
			progress(bytesTransferred)
		}
	}

	if _, err := a.client.UploadFile(ctx, obj.Container, obj.Name, obj.File, opts); err != nil {
		return fmt.Errorf("upload blob %q: %w", obj.Name, err)
	}
	return nil
}

// Close implements Store.
func (a *Azure) Close() error {
	return nil
}

func isAzureConflict(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict
}

var _ Store = (*Azure)(nil)
