package storage

import (
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"github.com/boltdb/bolt"
	"github.com/satori/go.uuid"
	"time"
)

const pageSize = 500

// MetadataStore is the resource persistence layer the fixity engine
// depends on. FindById returns an error wrapping
// constants.ErrResourceNotFound when there is no such resource.
type MetadataStore interface {
	FindById(id string) (*models.Resource, error)
	Save(resource *models.Resource) (*models.Resource, error)
	Delete(id string) error
	QueryByProperty(property, value string) ([]*models.Resource, error)
	ForEach(fn func(resource *models.Resource) error) error
}

// BoltMetadataStore keeps resources in the resources bucket of a
// BoltDB, keyed by id.
type BoltMetadataStore struct {
	boltDB *BoltDB
}

func NewBoltMetadataStore(boltDB *BoltDB) *BoltMetadataStore {
	return &BoltMetadataStore{boltDB: boltDB}
}

// FindById returns the resource with the specified id.
func (store *BoltMetadataStore) FindById(id string) (*models.Resource, error) {
	resource := &models.Resource{}
	found, err := store.boltDB.Get(ResourceBucket, id, resource)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", constants.ErrResourceNotFound, id)
	}
	return resource, nil
}

// Save writes the resource and returns the saved copy. Every save
// issues a new lock token, so anything holding the old token can tell
// the resource has changed.
func (store *BoltMetadataStore) Save(resource *models.Resource) (*models.Resource, error) {
	if err := resource.Validate(); err != nil {
		return nil, err
	}
	saved := *resource
	now := time.Now().UTC()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	saved.LockToken = uuid.NewV4().String()
	err := store.boltDB.Save(ResourceBucket, saved.Id, &saved)
	if err != nil {
		return nil, fmt.Errorf("Error saving resource %s: %v", saved.Id, err)
	}
	return &saved, nil
}

// Delete removes the resource with the specified id.
func (store *BoltMetadataStore) Delete(id string) error {
	return store.boltDB.Delete(ResourceBucket, id)
}

// QueryByProperty returns resources whose property has the specified
// value. Supported properties are type and parent_id.
func (store *BoltMetadataStore) QueryByProperty(property, value string) ([]*models.Resource, error) {
	var match func(*models.Resource) bool
	switch property {
	case constants.PropertyType:
		match = func(r *models.Resource) bool { return r.Type == value }
	case constants.PropertyParentId:
		match = func(r *models.Resource) bool { return r.ParentId == value }
	default:
		return nil, fmt.Errorf("Cannot query resources by property '%s'", property)
	}
	results := make([]*models.Resource, 0)
	err := store.ForEach(func(resource *models.Resource) error {
		if match(resource) {
			results = append(results, resource)
		}
		return nil
	})
	return results, err
}

// ForEach calls fn for every resource, in id order. Iteration stops
// at the first error fn returns. Resources are read in pages, and fn
// runs outside the read transaction, so fn may write to the store.
func (store *BoltMetadataStore) ForEach(fn func(resource *models.Resource) error) error {
	after := ""
	for {
		page := make([]*models.Resource, 0, pageSize)
		err := store.boltDB.View(func(tx *bolt.Tx) error {
			c := tx.Bucket([]byte(ResourceBucket)).Cursor()
			var k, v []byte
			if after == "" {
				k, v = c.First()
			} else {
				k, v = c.Seek([]byte(after))
				if k != nil && string(k) == after {
					k, v = c.Next()
				}
			}
			for ; k != nil && len(page) < pageSize; k, v = c.Next() {
				resource := &models.Resource{}
				if err := Decode(v, resource); err != nil {
					return err
				}
				page = append(page, resource)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, resource := range page {
			if err := fn(resource); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
		after = page[len(page)-1].Id
	}
}
