package models_test

import (
	"errors"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseCloudFixityRequest(t *testing.T) {
	body := []byte(`{"status":"FAILURE","resource_id":"work-1","child_property":"binary_nodes","child_id":"bin-1"}`)
	request := &models.CloudFixityRequest{}
	require.Nil(t, models.ParseJobRequest(body, request))
	assert.Equal(t, constants.StatusFailure, request.Status)
	assert.Equal(t, "work-1/binary_nodes/bin-1", request.TrackedEntity().Key())

	bad := []byte(`{"status":"REPAIRING","resource_id":"work-1","child_property":"binary_nodes","child_id":"bin-1"}`)
	err := models.ParseJobRequest(bad, &models.CloudFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	bad = []byte(`{"status":"SUCCESS","resource_id":"work-1","child_property":"file_metadata","child_id":"f"}`)
	err = models.ParseJobRequest(bad, &models.CloudFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	bad = []byte(`{"status":"SUCCESS","resource_id":"work-1","child_property":"metadata_node"}`)
	err = models.ParseJobRequest(bad, &models.CloudFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))
	assert.Contains(t, err.Error(), "ChildId")

	bad = []byte(`{"status":"SUCCESS","resource_id":"work 1","child_property":"metadata_node","child_id":"work 1"}`)
	err = models.ParseJobRequest(bad, &models.CloudFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))
	assert.Contains(t, err.Error(), "resource_id")

	err = models.ParseJobRequest([]byte(`not json`), &models.CloudFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))
}

func TestParseLocalFixityRequest(t *testing.T) {
	request := &models.LocalFixityRequest{}
	require.Nil(t, models.ParseJobRequest([]byte(`{"file_set_id":"fs-1"}`), request))
	assert.Equal(t, "fs-1", request.FileSetId)

	err := models.ParseJobRequest([]byte(`{}`), &models.LocalFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	err = models.ParseJobRequest([]byte(`{"file_set_id":"../fs-1"}`), &models.LocalFixityRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))
}

func TestParseRepairRequest(t *testing.T) {
	request := &models.RepairRequest{}
	require.Nil(t, models.ParseJobRequest([]byte(`{"resource_id":"fs-1"}`), request))
	assert.Equal(t, "fs-1", request.ResourceId)

	err := models.ParseJobRequest([]byte(`{"resource_id":"fs-1","child_property":"bogus"}`), &models.RepairRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	err = models.ParseJobRequest([]byte(`{"child_property":"binary_nodes","child_id":"f-1"}`), &models.RepairRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	cloudRepair := &models.RepairRequest{}
	body := []byte(`{"resource_id":"fs-1","child_property":"binary_nodes","child_id":"f-1","event_id":"e-1"}`)
	require.Nil(t, models.ParseJobRequest(body, cloudRepair))
	assert.Equal(t, "fs-1/binary_nodes/f-1", cloudRepair.TrackedEntity().Key())
}

func TestParseAuditRequest(t *testing.T) {
	request := &models.AuditRequest{}
	require.Nil(t, models.ParseJobRequest([]byte(`{"resource_id":"work-1","audit_id":"a-1"}`), request))
	assert.False(t, request.IsSweep())
	err := models.ParseJobRequest([]byte(`{"resource_id":"work-1"}`), &models.AuditRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	err = models.ParseJobRequest([]byte(`{"resource_id":"work 1","audit_id":"a-1"}`), &models.AuditRequest{})
	assert.True(t, errors.Is(err, constants.ErrInvalidJobMessage))

	sweep := &models.AuditRequest{}
	require.Nil(t, models.ParseJobRequest([]byte(`{"audit_id":"a-2"}`), sweep))
	assert.True(t, sweep.IsSweep())
}
