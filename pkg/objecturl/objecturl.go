// Package objecturl mints short-lived URLs for in-memory blobs.
//
// It is the server-side counterpart of a browser's object URLs: a blob is
// registered under a random id, served while the id is live and released by
// Revoke or when its TTL lapses. The delivery dispatcher revokes every id it
// creates before an export call returns.
package objecturl

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/receiptify/pkg/receipt"
)

// ErrNotFound is returned by Resolve for unknown, revoked or expired ids.
var ErrNotFound = errors.New("object url not found")

// DefaultTTL bounds the lifetime of an object URL that is never revoked.
const DefaultTTL = time.Minute

// Object is a blob registered under an object URL.
type Object struct {
	Data     []byte `json:"data"`
	Type     string `json:"type"`
	Filename string `json:"filename,omitempty"`
}

// Store registers, resolves and revokes object URLs.
type Store interface {
	// Create registers obj and returns its id. A ttl of zero uses DefaultTTL.
	Create(ctx context.Context, obj Object, ttl time.Duration) (string, error)

	// Resolve returns the object registered under id, or ErrNotFound.
	Resolve(ctx context.Context, id string) (*Object, error)

	// Revoke releases id. Revoking an unknown id is not an error.
	Revoke(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}

// FromBlob returns the object for a blob saved under filename.
func FromBlob(b receipt.Blob, filename string) Object {
	return Object{Data: b.Data, Type: b.Type, Filename: filename}
}

// NewID returns a fresh random object id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// URL joins base and id into an object URL path. base is typically "/objects".
func URL(base, id string) string {
	return strings.TrimSuffix(base, "/") + "/" + id
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
