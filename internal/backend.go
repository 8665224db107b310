package internal

import (
	"context"
)

// SCBKey is the fixed logical key every backend stores the channel backup under.
const SCBKey = "channel.backup"

// Backend abstracts the cloud key-value store vs external storage targets.
// Values are the base64 form of the SCB. Get returns an error satisfying
// errors.Is(err, errors.NotFound) when nothing has been stored yet.
type Backend interface {
	Name() string
	Put(ctx context.Context, key, scbBase64 string) error
	Get(ctx context.Context, key string) (string, error)
}

// KeyValueStore is a small synchronized string store, such as a cloud
// key-value service.
type KeyValueStore interface {
	SetItem(ctx context.Context, key, value string) error
	GetItem(ctx context.Context, key string) (string, error)
}
