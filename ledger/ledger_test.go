package ledger_test

import (
	"errors"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/ledger"
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newLedger(t *testing.T) *ledger.Ledger {
	boltDB, err := storage.NewBoltDB(filepath.Join(t.TempDir(), "ledger_test.db"))
	require.Nil(t, err)
	t.Cleanup(func() { boltDB.Close() })
	return ledger.NewLedger(boltDB)
}

func binaryEntity(childId string) models.TrackedEntity {
	return models.NewTrackedEntity("res1", constants.ChildBinaryNodes, childId)
}

func cloudEvent(entity models.TrackedEntity, status string) *models.FixityEvent {
	return models.NewFixityEvent(constants.EventCloudFixity, status, entity, "")
}

func countCurrent(t *testing.T, fixityLedger *ledger.Ledger, entity models.TrackedEntity) int {
	history, err := fixityLedger.History(entity)
	require.Nil(t, err)
	current := 0
	for _, event := range history {
		if event.Current {
			current++
		}
	}
	return current
}

func TestRecordSupersedes(t *testing.T) {
	fixityLedger := newLedger(t)
	entity := binaryEntity("node1")

	current, err := fixityLedger.CurrentEvent(entity)
	require.Nil(t, err)
	assert.Nil(t, current)

	first, err := fixityLedger.Record(cloudEvent(entity, constants.StatusSuccess), nil)
	require.Nil(t, err)
	assert.True(t, first.Current)

	second, err := fixityLedger.Record(cloudEvent(entity, constants.StatusRepairing), &entity)
	require.Nil(t, err)

	current, err = fixityLedger.CurrentEvent(entity)
	require.Nil(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.Id, current.Id)
	assert.Equal(t, constants.StatusRepairing, current.Status)

	history, err := fixityLedger.History(entity)
	require.Nil(t, err)
	require.Equal(t, 2, len(history))
	assert.Equal(t, first.Id, history[0].Id)
	assert.False(t, history[0].Current)
	assert.True(t, history[1].Current)

	// Another entity of the same resource is unaffected.
	other := binaryEntity("node10")
	_, err = fixityLedger.Record(cloudEvent(other, constants.StatusSuccess), nil)
	require.Nil(t, err)
	assert.Equal(t, 1, countCurrent(t, fixityLedger, entity))
	assert.Equal(t, 1, countCurrent(t, fixityLedger, other))

	count, err := fixityLedger.Count()
	require.Nil(t, err)
	assert.Equal(t, 3, count)
}

func TestRecordHistoryOrder(t *testing.T) {
	fixityLedger := newLedger(t)
	entity := binaryEntity("node1")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Seconds and nanoseconds of different widths must still sort.
	offsets := []time.Duration{
		10 * time.Second,
		time.Second + 5*time.Millisecond,
		9 * time.Second,
		time.Second,
	}
	for _, offset := range offsets {
		event := cloudEvent(entity, constants.StatusSuccess)
		event.CreatedAt = base.Add(offset)
		_, err := fixityLedger.Record(event, nil)
		require.Nil(t, err)
	}
	history, err := fixityLedger.History(entity)
	require.Nil(t, err)
	require.Equal(t, 4, len(history))
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].CreatedAt.Before(history[i].CreatedAt))
	}
	// The last recorded event is current, whatever its timestamp.
	assert.Equal(t, 1, countCurrent(t, fixityLedger, entity))
	current, err := fixityLedger.CurrentEvent(entity)
	require.Nil(t, err)
	assert.True(t, current.CreatedAt.Equal(base.Add(time.Second)))
}

func TestRecordInvalidEventWritesNothing(t *testing.T) {
	fixityLedger := newLedger(t)
	entity := binaryEntity("node1")
	_, err := fixityLedger.Record(cloudEvent(entity, constants.StatusSuccess), nil)
	require.Nil(t, err)

	bad := cloudEvent(entity, "MAYBE")
	_, err = fixityLedger.Record(bad, nil)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, constants.ErrInvalidEventData))

	noType := cloudEvent(entity, constants.StatusFailure)
	noType.Type = ""
	_, err = fixityLedger.Record(noType, nil)
	assert.True(t, errors.Is(err, constants.ErrInvalidEventData))

	_, err = fixityLedger.Record(nil, nil)
	assert.True(t, errors.Is(err, constants.ErrInvalidEventData))

	count, err := fixityLedger.Count()
	require.Nil(t, err)
	assert.Equal(t, 1, count)
	current, err := fixityLedger.CurrentEvent(entity)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusSuccess, current.Status)
}

func TestRecordSupersedeMismatch(t *testing.T) {
	fixityLedger := newLedger(t)
	entity := binaryEntity("node1")
	wrong := binaryEntity("node2")
	_, err := fixityLedger.Record(cloudEvent(entity, constants.StatusSuccess), &wrong)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, constants.ErrInvalidEventData))
	count, err := fixityLedger.Count()
	require.Nil(t, err)
	assert.Equal(t, 0, count)
}

func TestRecordConcurrent(t *testing.T) {
	fixityLedger := newLedger(t)
	entity := binaryEntity("node1")
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fixityLedger.Record(cloudEvent(entity, constants.StatusSuccess), &entity)
			assert.Nil(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, countCurrent(t, fixityLedger, entity))
	history, err := fixityLedger.History(entity)
	require.Nil(t, err)
	assert.Equal(t, 25, len(history))
}

func TestCurrentEventQueries(t *testing.T) {
	fixityLedger := newLedger(t)
	metadata := models.NewTrackedEntity("res1", constants.ChildMetadataNode, "meta1")
	binary := binaryEntity("node1")
	otherResource := models.NewTrackedEntity("res10", constants.ChildBinaryNodes, "node1")
	local := models.NewTrackedEntity("res1", constants.ChildFileMetadata, "file1")

	_, err := fixityLedger.Record(cloudEvent(metadata, constants.StatusSuccess), nil)
	require.Nil(t, err)
	_, err = fixityLedger.Record(cloudEvent(binary, constants.StatusSuccess), nil)
	require.Nil(t, err)
	_, err = fixityLedger.Record(cloudEvent(binary, constants.StatusRepairing), nil)
	require.Nil(t, err)
	_, err = fixityLedger.Record(cloudEvent(otherResource, constants.StatusFailure), nil)
	require.Nil(t, err)
	_, err = fixityLedger.Record(models.NewFixityEvent(constants.EventLocalFixity,
		constants.StatusFailure, local, ""), nil)
	require.Nil(t, err)

	repairing, err := fixityLedger.CurrentEvents(constants.EventCloudFixity, constants.StatusRepairing)
	require.Nil(t, err)
	require.Equal(t, 1, len(repairing))
	assert.Equal(t, "node1", repairing[0].ChildId)

	failures, err := fixityLedger.CurrentEvents("", constants.StatusFailure)
	require.Nil(t, err)
	assert.Equal(t, 2, len(failures))

	all, err := fixityLedger.CurrentEvents("", "")
	require.Nil(t, err)
	assert.Equal(t, 4, len(all))

	forResource, err := fixityLedger.CurrentForResource("res1", constants.EventCloudFixity)
	require.Nil(t, err)
	assert.Equal(t, 2, len(forResource))

	forResource, err = fixityLedger.CurrentForResource("res1", "")
	require.Nil(t, err)
	assert.Equal(t, 3, len(forResource))
}
