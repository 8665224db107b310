package internal

import (
	"context"

	"github.com/juju/errors"
)

// CloudBackend persists the backup into a KeyValueStore.
type CloudBackend struct{ Store KeyValueStore }

func NewCloudBackend(store KeyValueStore) *CloudBackend { return &CloudBackend{Store: store} }

func (b *CloudBackend) Name() string { return "cloud" }

func (b *CloudBackend) Put(ctx context.Context, key, scbBase64 string) error {
	return errors.Trace(b.Store.SetItem(ctx, key, scbBase64))
}

func (b *CloudBackend) Get(ctx context.Context, key string) (string, error) {
	v, err := b.Store.GetItem(ctx, key)
	if err != nil {
		return "", errors.Trace(err)
	}
	if v == "" {
		return "", errors.NotFoundf("cloud item %q", key)
	}
	return v, nil
}
