package network

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// S3Mock is an in-memory stand-in for an S3-compatible server, for
// tests of S3Store and MinioStore. It understands path-style GET,
// HEAD, PUT and DELETE on single objects, and HEAD on a bucket.
// Every bucket exists until AddBucket is called; after that, only
// the added buckets do.
type S3Mock struct {
	mutex   sync.RWMutex
	objects map[string][]byte
	buckets map[string]bool
}

func NewS3Mock() *S3Mock {
	return &S3Mock{
		objects: make(map[string][]byte),
		buckets: make(map[string]bool),
	}
}

// AddBucket restricts the mock to the buckets added so far.
func (mock *S3Mock) AddBucket(bucket string) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.buckets[bucket] = true
}

func (mock *S3Mock) hasBucket(bucket string) bool {
	mock.mutex.RLock()
	defer mock.mutex.RUnlock()
	return len(mock.buckets) == 0 || mock.buckets[bucket]
}

// Object returns the stored bytes for bucket/key.
func (mock *S3Mock) Object(bucket, key string) ([]byte, bool) {
	mock.mutex.RLock()
	defer mock.mutex.RUnlock()
	data, ok := mock.objects[bucket+"/"+key]
	return data, ok
}

// SetObject stores data under bucket/key.
func (mock *S3Mock) SetObject(bucket, key string, data []byte) {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.objects[bucket+"/"+key] = data
}

func getBasicHeaders(data []byte) map[string]string {
	digest := md5.Sum(data)
	return map[string]string{
		"x-amz-id-2":       "ef8yU9AS1ed4OpIszj7UDNEHGran",
		"x-amz-request-id": "318BC8BC143432E5",
		"Date":             time.Now().UTC().Format(http.TimeFormat),
		"Last-Modified":    "Tue, 29 May 2018 12:00:00 GMT",
		"ETag":             fmt.Sprintf(`"%s"`, hex.EncodeToString(digest[:])),
		"Content-Length":   strconv.Itoa(len(data)),
		"Content-Type":     "application/octet-stream",
		"Server":           "AmazonS3",
	}
}

func (mock *S3Mock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if !mock.hasBucket(parts[0]) {
		writeError(w, r, "NoSuchBucket", "The specified bucket does not exist.", parts[0])
		return
	}
	if len(parts) < 2 || parts[1] == "" {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		mock.mutex.RLock()
		data, ok := mock.objects[path]
		mock.mutex.RUnlock()
		if !ok {
			writeError(w, r, "NoSuchKey", "The specified key does not exist.", path)
			return
		}
		for key, value := range getBasicHeaders(data) {
			w.Header().Set(key, value)
		}
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(data)
		}
	case http.MethodPut:
		data, err := ioutil.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mock.mutex.Lock()
		mock.objects[path] = data
		mock.mutex.Unlock()
		digest := md5.Sum(data)
		w.Header().Set("ETag", fmt.Sprintf(`"%s"`, hex.EncodeToString(digest[:])))
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		mock.mutex.Lock()
		delete(mock.objects, path)
		mock.mutex.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// writeError answers with a 404 S3 error document. HEAD responses
// carry no body, as on S3.
func writeError(w http.ResponseWriter, r *http.Request, code, message, resource string) {
	w.Header().Set("x-amz-request-id", "9F341CD3C4BA79E0")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>%s</Code><Message>%s</Message><Resource>%s</Resource><RequestId>9F341CD3C4BA79E0</RequestId></Error>`, code, message, resource)
}
