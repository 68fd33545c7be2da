package network

import (
	"context"
	"fmt"
	"github.com/APTrust/fixity/constants"
	minio "github.com/minio/minio-go"
	"io"
	"os"
)

// MinioStore is a BlobStore backed by a bucket on any S3-compatible
// server, accessed through the minio client.
type MinioStore struct {
	Bucket   string
	Endpoint string
	client   *minio.Client
}

// NewMinioStore connects to endpoint (host:port, no scheme) using
// the AWS credentials in the environment.
func NewMinioStore(endpoint, region, bucket string, useSSL bool) (*MinioStore, error) {
	accessKeyId := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if accessKeyId == "" || secretKey == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID and/or " +
			"AWS_SECRET_ACCESS_KEY not set in environment")
	}
	client, err := minio.NewWithRegion(endpoint, accessKeyId, secretKey, useSSL, region)
	if err != nil {
		return nil, fmt.Errorf("Cannot create minio client for %s: %v", endpoint, err)
	}
	return NewMinioStoreWithClient(client, endpoint, bucket), nil
}

func NewMinioStoreWithClient(client *minio.Client, endpoint, bucket string) *MinioStore {
	return &MinioStore{
		Bucket:   bucket,
		Endpoint: endpoint,
		client:   client,
	}
}

// Get stats the object before returning it, because minio objects
// are fetched lazily and a missing key would otherwise surface only
// on the first Read.
func (store *MinioStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	if _, err := store.client.StatObject(store.Bucket, id, minio.StatObjectOptions{}); err != nil {
		return nil, store.wrapError(id, err)
	}
	obj, err := store.client.GetObjectWithContext(ctx, store.Bucket, id, minio.GetObjectOptions{})
	if err != nil {
		return nil, store.wrapError(id, err)
	}
	return obj, nil
}

func (store *MinioStore) Put(ctx context.Context, id string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := store.client.PutObjectWithContext(ctx, store.Bucket, id, reader, size, opts)
	if err != nil {
		return fmt.Errorf("Error uploading %s: %v", store.Location(id), err)
	}
	return nil
}

func (store *MinioStore) Delete(ctx context.Context, id string) error {
	if err := store.client.RemoveObject(store.Bucket, id); err != nil {
		return store.wrapError(id, err)
	}
	return nil
}

func (store *MinioStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := store.client.StatObject(store.Bucket, id, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isMinioNotFound(err) {
		if bucketErr := store.checkBucket(); bucketErr != nil {
			return false, bucketErr
		}
		return false, nil
	}
	return false, store.wrapError(id, err)
}

func (store *MinioStore) Location(id string) string {
	return fmt.Sprintf("minio://%s/%s/%s", store.Endpoint, store.Bucket, id)
}

// wrapError maps a missing key to ErrFileNotFound. minio reports a
// HEAD on a key in a missing bucket as NoSuchKey, so the bucket is
// checked before blaming the file.
func (store *MinioStore) wrapError(id string, err error) error {
	if isMinioNotFound(err) {
		if bucketErr := store.checkBucket(); bucketErr != nil {
			return bucketErr
		}
		return fmt.Errorf("%w: %s", constants.ErrFileNotFound, store.Location(id))
	}
	return fmt.Errorf("Minio error on %s: %v", store.Location(id), err)
}

func (store *MinioStore) checkBucket() error {
	exists, err := store.client.BucketExists(store.Bucket)
	if err != nil {
		return fmt.Errorf("Cannot use bucket %s on %s: %v", store.Bucket, store.Endpoint, err)
	}
	if !exists {
		return fmt.Errorf("Bucket %s does not exist on %s", store.Bucket, store.Endpoint)
	}
	return nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
