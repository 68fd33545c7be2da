package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// ChecksumRecord maps a checksum algorithm name (md5, sha1, sha256)
// to a hex-encoded digest. A record describes a file's content at
// one point in time. Older records may carry fewer algorithms than
// newer ones.
type ChecksumRecord map[string]string

// NewChecksumRecord returns an empty ChecksumRecord.
func NewChecksumRecord() ChecksumRecord {
	return make(ChecksumRecord)
}

// Digest returns the digest for the specified algorithm, or an
// empty string if this record has no digest for it. Algorithm names
// are matched without regard to case.
func (record ChecksumRecord) Digest(algorithm string) string {
	if digest, ok := record[algorithm]; ok && digest != "" {
		return digest
	}
	for alg, digest := range record {
		if digest != "" && strings.EqualFold(alg, algorithm) {
			return digest
		}
	}
	return ""
}

// Algorithms returns the lowercased names of the algorithms in this
// record, sorted alphabetically.
func (record ChecksumRecord) Algorithms() []string {
	algs := make([]string, 0, len(record))
	seen := make(map[string]bool, len(record))
	for alg, digest := range record {
		name := strings.ToLower(alg)
		if digest != "" && !seen[name] {
			seen[name] = true
			algs = append(algs, name)
		}
	}
	sort.Strings(algs)
	return algs
}

// IsEmpty returns true if this record contains no digests.
func (record ChecksumRecord) IsEmpty() bool {
	return len(record.Algorithms()) == 0
}

// Agrees returns true if this record and other share at least one
// algorithm and every shared algorithm has the same digest. Hex
// digests are compared without regard to case. Two records with no
// algorithm in common do not agree.
func (record ChecksumRecord) Agrees(other ChecksumRecord) bool {
	shared := 0
	for _, alg := range record.Algorithms() {
		otherDigest := other.Digest(alg)
		if otherDigest == "" {
			continue
		}
		shared++
		if !strings.EqualFold(record.Digest(alg), otherDigest) {
			return false
		}
	}
	return shared > 0
}

// String returns the record as a JSON object. This is what we put
// into FixityEvent.Message when a check fails.
func (record ChecksumRecord) String() string {
	data, err := json.Marshal(map[string]string(record))
	if err != nil {
		return "{}"
	}
	return string(data)
}
