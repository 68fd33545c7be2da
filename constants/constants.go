// Common vars and constants, shared by the fixity services.
package constants

import (
	"regexp"
)

// ResourceIdPattern matches a valid resource id. Ids become bolt keys,
// blob store file names and S3 key prefixes, so we keep them boring:
// alphanumerics, dots, underscores and dashes.
var ResourceIdPattern = regexp.MustCompile("^[A-Za-z0-9][A-Za-z0-9\\._\\-]*$")

// FixitySystemAgent is recorded as the agent in alerts and result logs.
const FixitySystemAgent = "https://github.com/APTrust/fixity"

// Fixity event types. The type says which copy was verified: the
// local copy on disk or the preserved copy in the durable store.
const (
	EventLocalFixity = "local_fixity"
	EventCloudFixity = "cloud_fixity"
)

var EventTypes []string = []string{
	EventLocalFixity,
	EventCloudFixity,
}

// Fixity event statuses. REPAIRING is the latched state that blocks
// further automatic repairs until a SUCCESS is observed.
const (
	StatusSuccess   = "SUCCESS"
	StatusFailure   = "FAILURE"
	StatusRepairing = "REPAIRING"
)

var StatusTypes []string = []string{
	StatusSuccess,
	StatusFailure,
	StatusRepairing,
}

// Child properties identify which part of a resource a tracked
// entity refers to.
const (
	ChildMetadataNode = "metadata_node"
	ChildBinaryNodes  = "binary_nodes"
	ChildFileMetadata = "file_metadata"
)

var ChildProperties []string = []string{
	ChildMetadataNode,
	ChildBinaryNodes,
	ChildFileMetadata,
}

// File roles on a FileSet, in the order the local checker visits them.
const (
	RoleOriginal     = "original"
	RoleIntermediate = "intermediate"
	RolePreservation = "preservation"
)

var FileRoles []string = []string{
	RoleOriginal,
	RoleIntermediate,
	RolePreservation,
}

// Checksum algorithms computed by the checksum service.
const (
	AlgMd5    = "md5"
	AlgSha1   = "sha1"
	AlgSha256 = "sha256"
)

var ChecksumAlgorithms = []string{AlgMd5, AlgSha1, AlgSha256}

// Durable store providers.
const (
	StoreS3    = "s3"
	StoreMinio = "minio"
	StoreDisk  = "disk"
)

var StoreProviders []string = []string{
	StoreS3,
	StoreMinio,
	StoreDisk,
}

// AWS Regions
const (
	AWSVirginia = "us-east-1"
	AWSOhio     = "us-east-2"
	AWSOregon   = "us-west-2"
)

// Property names accepted by MetadataStore.QueryByProperty.
const (
	PropertyType     = "type"
	PropertyParentId = "parent_id"
)

// Content types used when writing preserved copies.
const (
	ContentTypeJson   = "application/json"
	ContentTypeBinary = "application/octet-stream"
)
