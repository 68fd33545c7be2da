// Package ledger is the append-only record of fixity verification
// outcomes. For every tracked entity, at most one event is current.
package ledger

import (
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/storage"
	"github.com/boltdb/bolt"
)

// Ledger stores FixityEvents in a BoltDB. Events are keyed by
// tracked entity, creation time and id, so each entity's history
// sorts oldest first. A second bucket maps each entity to the key of
// its current event.
type Ledger struct {
	boltDB *storage.BoltDB
}

func NewLedger(boltDB *storage.BoltDB) *Ledger {
	return &Ledger{boltDB: boltDB}
}

// Fixed width, so keys sort in time order.
const sortableTime = "20060102T150405.000000000Z"

func eventKey(event *models.FixityEvent) string {
	return storage.CompositeKey(event.TrackedEntity().Key(),
		event.CreatedAt.UTC().Format(sortableTime), event.Id)
}

func historyPrefix(entity models.TrackedEntity) string {
	return storage.CompositeKey(entity.Key(), "")
}

// Record validates event and writes it as the current event for its
// tracked entity. The entity's previous current event, if any, loses
// its current flag in the same transaction. Either both writes commit
// or neither does. Param supersede names the entity whose current
// event is replaced; nil means the event's own entity, and any other
// entity is rejected.
//
// Invalid events are rejected with an error wrapping
// constants.ErrInvalidEventData, and nothing is written.
func (ledger *Ledger) Record(event *models.FixityEvent, supersede *models.TrackedEntity) (*models.FixityEvent, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if supersede != nil && *supersede != event.TrackedEntity() {
		return nil, fmt.Errorf("%w: event for %s cannot supersede %s",
			constants.ErrInvalidEventData, event.TrackedEntity(), supersede)
	}
	recorded := *event
	recorded.Current = true
	err := ledger.boltDB.Update(func(tx *bolt.Tx) error {
		if err := ledger.clearCurrent(tx, recorded.TrackedEntity()); err != nil {
			return err
		}
		key := eventKey(&recorded)
		if err := storage.PutValue(tx, storage.EventBucket, key, &recorded); err != nil {
			return err
		}
		return tx.Bucket([]byte(storage.CurrentEventBucket)).Put(
			[]byte(recorded.TrackedEntity().Key()), []byte(key))
	})
	if err != nil {
		return nil, fmt.Errorf("Error recording %s event for %s: %v",
			event.Type, event.TrackedEntity(), err)
	}
	return &recorded, nil
}

// clearCurrent flips the current flag on the entity's current event.
func (ledger *Ledger) clearCurrent(tx *bolt.Tx, entity models.TrackedEntity) error {
	index := tx.Bucket([]byte(storage.CurrentEventBucket))
	key := index.Get([]byte(entity.Key()))
	if key == nil {
		return nil
	}
	previous := &models.FixityEvent{}
	found, err := storage.GetValue(tx, storage.EventBucket, string(key), previous)
	if err != nil || !found {
		return err
	}
	previous.Current = false
	if err := storage.PutValue(tx, storage.EventBucket, string(key), previous); err != nil {
		return err
	}
	return index.Delete([]byte(entity.Key()))
}

// CurrentEvent returns the current event for the entity, or nil if
// none has been recorded.
func (ledger *Ledger) CurrentEvent(entity models.TrackedEntity) (*models.FixityEvent, error) {
	var event *models.FixityEvent
	err := ledger.boltDB.View(func(tx *bolt.Tx) error {
		key := tx.Bucket([]byte(storage.CurrentEventBucket)).Get([]byte(entity.Key()))
		if key == nil {
			return nil
		}
		candidate := &models.FixityEvent{}
		found, err := storage.GetValue(tx, storage.EventBucket, string(key), candidate)
		if err != nil || !found || !candidate.Current {
			return err
		}
		event = candidate
		return nil
	})
	return event, err
}

// History returns every event recorded for the entity, oldest first.
func (ledger *Ledger) History(entity models.TrackedEntity) ([]*models.FixityEvent, error) {
	events := make([]*models.FixityEvent, 0)
	err := ledger.boltDB.ForEachWithPrefix(storage.EventBucket, historyPrefix(entity), func(k, v []byte) error {
		event := &models.FixityEvent{}
		if err := storage.Decode(v, event); err != nil {
			return err
		}
		events = append(events, event)
		return nil
	})
	return events, err
}

// CurrentEvents returns the current events of the specified type and
// status. Empty strings match any type or status.
func (ledger *Ledger) CurrentEvents(eventType, status string) ([]*models.FixityEvent, error) {
	events := make([]*models.FixityEvent, 0)
	err := ledger.boltDB.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(storage.CurrentEventBucket)).ForEach(func(_, key []byte) error {
			event := &models.FixityEvent{}
			found, err := storage.GetValue(tx, storage.EventBucket, string(key), event)
			if err != nil || !found {
				return err
			}
			if (eventType == "" || event.Type == eventType) && (status == "" || event.Status == status) {
				events = append(events, event)
			}
			return nil
		})
	})
	return events, err
}

// CurrentForResource returns the current events of the specified
// type for every tracked entity of one resource.
func (ledger *Ledger) CurrentForResource(resourceId, eventType string) ([]*models.FixityEvent, error) {
	events := make([]*models.FixityEvent, 0)
	err := ledger.boltDB.View(func(tx *bolt.Tx) error {
		return storage.ScanPrefix(tx, storage.CurrentEventBucket, resourceId+"/", func(_, key []byte) error {
			event := &models.FixityEvent{}
			found, err := storage.GetValue(tx, storage.EventBucket, string(key), event)
			if err != nil || !found {
				return err
			}
			if event.ResourceId == resourceId && (eventType == "" || event.Type == eventType) {
				events = append(events, event)
			}
			return nil
		})
	})
	return events, err
}

// Count returns the total number of events in the ledger.
func (ledger *Ledger) Count() (int, error) {
	count := 0
	err := ledger.boltDB.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(storage.EventBucket)).Stats().KeyN
		return nil
	})
	return count, err
}
