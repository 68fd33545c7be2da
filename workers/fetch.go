package workers

import (
	gocontext "context"
	"errors"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/fixity"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/network"
	"github.com/cenkalti/backoff/v5"
	"io"
	"io/ioutil"
	"os"
)

const fetchMaxTries = 3

// fetchVerified copies a preserved file from the store into a temp
// file and checks it against expected. Transient store errors are
// retried with exponential backoff. A missing file, or one whose
// checksum does not agree with expected, is reported as
// ErrRepairSourceUnavailable. On success, the caller owns the temp
// file, which is positioned at the start, and must close and remove it.
func fetchVerified(ctx gocontext.Context, store network.BlobStore, key string, expected models.ChecksumRecord) (*os.File, error) {
	if expected.IsEmpty() {
		return nil, fmt.Errorf("%w: no checksum recorded for %s",
			constants.ErrRepairSourceUnavailable, store.Location(key))
	}
	tempFile, err := backoff.Retry(ctx, func() (*os.File, error) {
		return fetchOnce(ctx, store, key, expected)
	}, backoff.WithMaxTries(fetchMaxTries))
	if err != nil {
		if errors.Is(err, constants.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %v", constants.ErrRepairSourceUnavailable, err)
		}
		return nil, err
	}
	return tempFile, nil
}

func fetchOnce(ctx gocontext.Context, store network.BlobStore, key string, expected models.ChecksumRecord) (*os.File, error) {
	reader, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, constants.ErrFileNotFound) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer reader.Close()
	tempFile, err := ioutil.TempFile("", "fixity-repair-")
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	digester := fixity.NewDigester()
	_, err = io.Copy(io.MultiWriter(tempFile, digester), reader)
	if err == nil {
		_, err = tempFile.Seek(0, io.SeekStart)
	}
	if err != nil {
		discardTempFile(tempFile)
		return nil, fmt.Errorf("Error copying %s: %v", store.Location(key), err)
	}
	if !digester.Sum().Agrees(expected) {
		discardTempFile(tempFile)
		return nil, backoff.Permanent(fmt.Errorf("%w: preserved copy %s does not match its recorded checksum",
			constants.ErrRepairSourceUnavailable, store.Location(key)))
	}
	return tempFile, nil
}

func discardTempFile(tempFile *os.File) {
	if tempFile == nil {
		return
	}
	tempFile.Close()
	os.Remove(tempFile.Name())
}

// localCopyIntact returns true if the local file exists and agrees
// with one of its recorded checksums.
func localCopyIntact(ctx gocontext.Context, store network.BlobStore, file *models.FileMetadata) (bool, error) {
	reader, err := store.Get(ctx, file.FileIdentifier)
	if errors.Is(err, constants.ErrFileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer reader.Close()
	checksum, err := fixity.Compute(reader)
	if err != nil {
		return false, err
	}
	return fixity.Matches(checksum, file.Checksums), nil
}
