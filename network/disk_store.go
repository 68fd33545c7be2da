package network

import (
	"context"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore is a BlobStore backed by a directory on local disk. File
// ids are paths relative to the root directory.
type DiskStore struct {
	root string
}

// NewDiskStore returns a DiskStore rooted at dir, creating dir if
// it does not exist.
func NewDiskStore(dir string) (*DiskStore, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("Cannot create storage directory %s: %v", absDir, err)
	}
	return &DiskStore{root: absDir}, nil
}

// Root returns the absolute path of the store's root directory.
func (store *DiskStore) Root() string {
	return store.root
}

func (store *DiskStore) pathTo(id string) (string, error) {
	path := filepath.Join(store.root, filepath.FromSlash(id))
	if path != store.root && !strings.HasPrefix(path, store.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("File id '%s' is outside the storage directory", id)
	}
	return path, nil
}

func (store *DiskStore) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	path, err := store.pathTo(id)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", constants.ErrFileNotFound, path)
	}
	return file, err
}

// Put writes the file to a temp file in the same directory and
// renames it into place, so readers never see a partial file.
func (store *DiskStore) Put(ctx context.Context, id string, reader io.Reader, size int64, contentType string) error {
	path, err := store.pathTo(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tempFile, err := ioutil.TempFile(filepath.Dir(path), ".upload-")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())
	written, err := io.Copy(tempFile, reader)
	closeErr := tempFile.Close()
	if err != nil {
		return fmt.Errorf("Error writing %s: %v", path, err)
	}
	if closeErr != nil {
		return closeErr
	}
	if size >= 0 && written != size {
		return fmt.Errorf("Wrote %d of %d bytes to %s", written, size, path)
	}
	return os.Rename(tempFile.Name(), path)
}

func (store *DiskStore) Delete(ctx context.Context, id string) error {
	path, err := store.pathTo(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (store *DiskStore) Exists(ctx context.Context, id string) (bool, error) {
	path, err := store.pathTo(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (store *DiskStore) Location(id string) string {
	path, err := store.pathTo(id)
	if err != nil {
		return id
	}
	return "file://" + path
}
