package storage

import (
	"fmt"
	"github.com/APTrust/fixity/models"
	"github.com/boltdb/bolt"
	"sort"
)

// PreservationObjects stores PreservationObject records, keyed by
// the id of the resource they preserve plus their own id. A resource
// may briefly have more than one; Current keeps the newest and prunes
// the rest.
type PreservationObjects struct {
	boltDB *BoltDB
}

func NewPreservationObjects(boltDB *BoltDB) *PreservationObjects {
	return &PreservationObjects{boltDB: boltDB}
}

func preservationKey(obj *models.PreservationObject) string {
	return CompositeKey(obj.PreservedObjectId, obj.Id)
}

// Save writes a preservation object.
func (store *PreservationObjects) Save(obj *models.PreservationObject) error {
	if obj.PreservedObjectId == "" || obj.Id == "" {
		return fmt.Errorf("Preservation object needs both an id and a preserved object id")
	}
	return store.boltDB.Save(PreservationBucket, preservationKey(obj), obj)
}

// ForResource returns every preservation object for the resource,
// newest first.
func (store *PreservationObjects) ForResource(resourceId string) ([]*models.PreservationObject, error) {
	objs := make([]*models.PreservationObject, 0)
	err := store.boltDB.ForEachWithPrefix(PreservationBucket, CompositeKey(resourceId, ""), func(k, v []byte) error {
		obj := &models.PreservationObject{}
		if err := Decode(v, obj); err != nil {
			return err
		}
		objs = append(objs, obj)
		return nil
	})
	sort.SliceStable(objs, func(i, j int) bool {
		return objs[i].UpdatedAt.After(objs[j].UpdatedAt)
	})
	return objs, err
}

// Current returns the newest preservation object for the resource,
// or nil if it has never been preserved. Older objects for the same
// resource are deleted in the same transaction that reads them.
func (store *PreservationObjects) Current(resourceId string) (*models.PreservationObject, error) {
	var current *models.PreservationObject
	err := store.boltDB.Update(func(tx *bolt.Tx) error {
		objs := make([]*models.PreservationObject, 0)
		err := ScanPrefix(tx, PreservationBucket, CompositeKey(resourceId, ""), func(k, v []byte) error {
			obj := &models.PreservationObject{}
			if err := Decode(v, obj); err != nil {
				return err
			}
			objs = append(objs, obj)
			return nil
		})
		if err != nil || len(objs) == 0 {
			return err
		}
		sort.SliceStable(objs, func(i, j int) bool {
			return objs[i].UpdatedAt.After(objs[j].UpdatedAt)
		})
		current = objs[0]
		bucket := tx.Bucket([]byte(PreservationBucket))
		for _, stale := range objs[1:] {
			if err := bucket.Delete([]byte(preservationKey(stale))); err != nil {
				return err
			}
		}
		return nil
	})
	return current, err
}

// DeleteForResource removes every preservation object for the resource.
func (store *PreservationObjects) DeleteForResource(resourceId string) error {
	return store.boltDB.Update(func(tx *bolt.Tx) error {
		keys := make([][]byte, 0)
		err := ScanPrefix(tx, PreservationBucket, CompositeKey(resourceId, ""), func(k, v []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		bucket := tx.Bucket([]byte(PreservationBucket))
		for _, k := range keys {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
