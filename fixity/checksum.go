// Package fixity holds the checksum service and the transition rules
// that turn a verification signal into a fixity event status.
package fixity

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"github.com/APTrust/fixity/constants"
	"github.com/APTrust/fixity/models"
	"hash"
	"io"
	"os"
)

// Digester is an io.Writer that runs everything written to it through
// md5, sha1 and sha256. Use it with io.TeeReader to checksum a stream
// while it is being copied somewhere else.
type Digester struct {
	hashes map[string]hash.Hash
	writer io.Writer
}

func NewDigester() *Digester {
	hashes := map[string]hash.Hash{
		constants.AlgMd5:    md5.New(),
		constants.AlgSha1:   sha1.New(),
		constants.AlgSha256: sha256.New(),
	}
	writers := make([]io.Writer, 0, len(hashes))
	for _, h := range hashes {
		writers = append(writers, h)
	}
	return &Digester{hashes: hashes, writer: io.MultiWriter(writers...)}
}

func (digester *Digester) Write(p []byte) (int, error) {
	return digester.writer.Write(p)
}

// Sum returns the checksums of everything written so far.
func (digester *Digester) Sum() models.ChecksumRecord {
	record := models.NewChecksumRecord()
	for alg, h := range digester.hashes {
		record[alg] = fmt.Sprintf("%x", h.Sum(nil))
	}
	return record
}

// Compute reads the stream once, passing the bits through md5, sha1
// and sha256 as they go by. Multi-gigabyte files never sit in memory.
func Compute(reader io.Reader) (models.ChecksumRecord, error) {
	digester := NewDigester()
	if _, err := io.Copy(digester, reader); err != nil {
		return nil, fmt.Errorf("Error calculating checksums: %v", err)
	}
	return digester.Sum(), nil
}

// ComputeFile returns the checksums of the file at pathToFile.
func ComputeFile(pathToFile string) (models.ChecksumRecord, error) {
	file, err := os.Open(pathToFile)
	if err != nil {
		return nil, fmt.Errorf("Error opening file '%s': %v", pathToFile, err)
	}
	defer file.Close()
	return Compute(file)
}

// Matches returns true if candidate agrees with at least one of the
// historical records: they share one or more algorithms and every
// shared digest is equal. A candidate that shares no algorithm with
// any historical record does not match.
func Matches(candidate models.ChecksumRecord, historical []models.ChecksumRecord) bool {
	for _, record := range historical {
		if candidate.Agrees(record) {
			return true
		}
	}
	return false
}
