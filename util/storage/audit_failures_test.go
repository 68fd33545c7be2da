package storage_test

import (
	"github.com/APTrust/fixity/models"
	"github.com/APTrust/fixity/util/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestAuditFailures(t *testing.T) {
	store := storage.NewAuditFailures(newBoltDB(t))
	require.Nil(t, store.Save(models.NewPreservationCheckFailure("res1", "audit-1", "no preservation object")))
	require.Nil(t, store.Save(models.NewPreservationCheckFailure("res2", "audit-1", "lock token mismatch")))
	require.Nil(t, store.Save(models.NewPreservationCheckFailure("res1", "audit-2", "metadata checksum mismatch")))

	// A retried audit replaces its row for the resource.
	require.Nil(t, store.Save(models.NewPreservationCheckFailure("res1", "audit-1", "lock token mismatch")))

	failures, err := store.ForAudit("audit-1")
	require.Nil(t, err)
	require.Equal(t, 2, len(failures))
	assert.Equal(t, "res1", failures[0].ResourceId)
	assert.Equal(t, "lock token mismatch", failures[0].Reason)

	failures, err = store.ForAudit("audit-2")
	require.Nil(t, err)
	assert.Equal(t, 1, len(failures))

	failures, err = store.ForAudit("audit-3")
	require.Nil(t, err)
	assert.Empty(t, failures)
}
