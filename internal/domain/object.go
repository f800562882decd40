package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ObjectKey identifies one object within the gallery bucket.
type ObjectKey string

// NewObjectKey builds the key for a file captured at the given instant:
// "{unix millis}-{file name}".
func NewObjectKey(capturedAt time.Time, fileName string) ObjectKey {
	return ObjectKey(fmt.Sprintf("%d-%s", capturedAt.UnixMilli(), fileName))
}

// Split returns the capture timestamp and original file name encoded in the key.
// ok is false for keys that were not produced by NewObjectKey.
func (k ObjectKey) Split() (millis int64, fileName string, ok bool) {
	prefix, name, found := strings.Cut(string(k), "-")
	if !found || prefix == "" {
		return 0, "", false
	}
	ms, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return ms, name, true
}

func (k ObjectKey) String() string {
	return string(k)
}

// StoredObject is an object as reported by the remote store.
type StoredObject struct {
	Key          ObjectKey
	Size         int64
	LastModified *time.Time
}

// SignedView pairs an object key with a time-bounded retrieval URL.
type SignedView struct {
	Key       ObjectKey
	URL       string
	ExpiresAt time.Time
}

// Expired reports whether the view's URL is no longer valid at now.
func (v SignedView) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}
