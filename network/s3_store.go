package network

import (
	"context"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"io"
)

// S3Store is a BlobStore backed by an S3 bucket. File ids are
// object keys.
type S3Store struct {
	Bucket   string
	session  *session.Session
	service  *s3.S3
	uploader *s3manager.Uploader
}

func NewS3Store(_session *session.Session, bucket string) *S3Store {
	return &S3Store{
		Bucket:   bucket,
		session:  _session,
		service:  s3.New(_session),
		uploader: s3manager.NewUploader(_session),
	}
}

func (store *S3Store) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := store.service.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(store.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, store.wrapError(id, err)
	}
	return resp.Body, nil
}

func (store *S3Store) Put(ctx context.Context, id string, reader io.Reader, size int64, contentType string) error {
	input := &s3manager.UploadInput{
		Bucket: aws.String(store.Bucket),
		Key:    aws.String(id),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := store.uploader.UploadWithContext(ctx, input)
	if err != nil {
		return fmt.Errorf("Error uploading %s: %v", store.Location(id), err)
	}
	return nil
}

func (store *S3Store) Delete(ctx context.Context, id string) error {
	_, err := store.service.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(store.Bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return store.wrapError(id, err)
	}
	return nil
}

func (store *S3Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := store.service.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(store.Bucket),
		Key:    aws.String(id),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		// A HEAD on a key in a missing bucket is also a bare 404.
		if bucketErr := store.checkBucket(ctx); bucketErr != nil {
			return false, bucketErr
		}
		return false, nil
	}
	return false, store.wrapError(id, err)
}

func (store *S3Store) Location(id string) string {
	return fmt.Sprintf("s3://%s/%s", store.Bucket, id)
}

func (store *S3Store) wrapError(id string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("%w: %s", constants.ErrFileNotFound, store.Location(id))
	}
	return fmt.Errorf("S3 error on %s: %v", store.Location(id), err)
}

// checkBucket returns an error if the bucket does not exist or
// cannot be reached.
func (store *S3Store) checkBucket(ctx context.Context) error {
	_, err := store.service.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(store.Bucket),
	})
	if err != nil {
		return fmt.Errorf("Cannot use bucket %s: %v", store.Bucket, err)
	}
	return nil
}

// isS3NotFound is true for a missing key only. HEAD requests carry no
// body, so S3 reports a missing key on those as a bare NotFound
// rather than NoSuchKey. NoSuchBucket is a configuration problem,
// not a missing file.
func isS3NotFound(err error) bool {
	if awsErr, ok := err.(awserr.Error); ok {
		return awsErr.Code() == s3.ErrCodeNoSuchKey || awsErr.Code() == "NotFound"
	}
	return false
}
