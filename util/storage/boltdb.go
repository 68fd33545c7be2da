package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"github.com/boltdb/bolt"
	"strings"
	"time"
)

// Buckets in the fixity database.
const (
	ResourceBucket          = "resources"
	PreservationBucket      = "preservation_objects"
	EventBucket             = "fixity_events"
	CurrentEventBucket      = "current_fixity_events"
	AuditFailureBucket      = "preservation_check_failures"
	LeaseBucket             = "leases"
	keySeparator            = "\x00"
	defaultOpenTimeoutInSec = 5
)

var buckets = []string{
	ResourceBucket,
	PreservationBucket,
	EventBucket,
	CurrentEventBucket,
	AuditFailureBucket,
	LeaseBucket,
}

// BoltDB represents a bolt database, which is a single-file key-value
// store. One file holds the metadata store, preservation objects, the
// fixity ledger, audit failures and job leases. Each lives in its own
// bucket. Values are gob-encoded.
//
// Bolt allows one writer at a time and wraps every Update in a
// transaction, which is what gives the ledger its atomic
// supersede-then-insert.
type BoltDB struct {
	db       *bolt.DB
	filePath string
}

// NewBoltDB opens a bolt database, creating the DB file if it doesn't
// already exist, and creates any missing buckets. Bolt locks the file,
// so only one process can have it open. If another process holds the
// lock, this gives up after a few seconds.
func NewBoltDB(filePath string) (boltDB *BoltDB, err error) {
	options := &bolt.Options{Timeout: defaultOpenTimeoutInSec * time.Second}
	db, err := bolt.Open(filePath, 0644, options)
	if err == nil {
		boltDB = &BoltDB{
			db:       db,
			filePath: filePath,
		}
		err = boltDB.initBuckets()
	}
	return boltDB, err
}

func (boltDB *BoltDB) initBuckets() error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			_, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return fmt.Errorf("Error creating bucket %s: %s", name, err)
			}
		}
		return nil
	})
}

// FilePath returns the path to the bolt DB file.
func (boltDB *BoltDB) FilePath() string {
	return boltDB.filePath
}

// Close closes the bolt database.
func (boltDB *BoltDB) Close() error {
	return boltDB.db.Close()
}

// Update runs fn inside a read-write transaction. If fn returns an
// error, every write it made is rolled back.
func (boltDB *BoltDB) Update(fn func(tx *bolt.Tx) error) error {
	return boltDB.db.Update(fn)
}

// View runs fn inside a read-only transaction.
func (boltDB *BoltDB) View(fn func(tx *bolt.Tx) error) error {
	return boltDB.db.View(fn)
}

// Save encodes value and stores it under key in the named bucket.
func (boltDB *BoltDB) Save(bucketName, key string, value interface{}) error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		return PutValue(tx, bucketName, key, value)
	})
}

// Get decodes the value stored under key into obj. It returns false
// and no error if the key does not exist.
func (boltDB *BoltDB) Get(bucketName, key string, obj interface{}) (found bool, err error) {
	err = boltDB.db.View(func(tx *bolt.Tx) error {
		found, err = GetValue(tx, bucketName, key, obj)
		return err
	})
	return found, err
}

// Delete removes key from the named bucket. Deleting a key that
// does not exist is not an error.
func (boltDB *BoltDB) Delete(bucketName, key string) error {
	return boltDB.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// ForEach calls the specified function for each key in the named
// bucket, in key order.
func (boltDB *BoltDB) ForEach(bucketName string, fn func(k, v []byte) error) error {
	return boltDB.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(fn)
	})
}

// ForEachWithPrefix calls fn for each key in the named bucket that
// begins with prefix, in key order.
func (boltDB *BoltDB) ForEachWithPrefix(bucketName, prefix string, fn func(k, v []byte) error) error {
	return boltDB.db.View(func(tx *bolt.Tx) error {
		return ScanPrefix(tx, bucketName, prefix, fn)
	})
}

// Keys returns a list of all keys in the named bucket.
func (boltDB *BoltDB) Keys(bucketName string) []string {
	keys := make([]string, 0)
	boltDB.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys
}

// KeyBatch returns keys from offset (zero-based) up to limit,
// or end of list.
func (boltDB *BoltDB) KeyBatch(bucketName string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	index := 0
	end := offset + limit
	keys := make([]string, 0)
	boltDB.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, _ := c.First(); k != nil && index < end; k, _ = c.Next() {
			if index >= offset {
				keys = append(keys, string(k))
			}
			index++
		}
		return nil
	})
	return keys
}

// CompositeKey joins parts with a separator that cannot appear in
// ids, so a prefix scan on one composite key never matches another.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, keySeparator)
}

// PutValue encodes value and writes it within an open transaction.
func PutValue(tx *bolt.Tx, bucketName, key string, value interface{}) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
}

// GetValue reads and decodes a value within an open transaction.
func GetValue(tx *bolt.Tx, bucketName, key string, obj interface{}) (bool, error) {
	value := tx.Bucket([]byte(bucketName)).Get([]byte(key))
	if len(value) == 0 {
		return false, nil
	}
	return true, Decode(value, obj)
}

// ScanPrefix calls fn for each key in the bucket that begins with prefix.
func ScanPrefix(tx *bolt.Tx, bucketName, prefix string, fn func(k, v []byte) error) error {
	c := tx.Bucket([]byte(bucketName)).Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// Encode gob-encodes value.
func Encode(value interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := gob.NewEncoder(buf).Encode(value)
	if err != nil {
		return nil, fmt.Errorf("Error encoding %T: %v", value, err)
	}
	return buf.Bytes(), nil
}

// Decode gob-decodes data into obj.
func Decode(data []byte, obj interface{}) error {
	err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(obj)
	if err != nil {
		return fmt.Errorf("Error decoding %T: %v", obj, err)
	}
	return nil
}
