package internal

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/juju/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore adapts a Firestore client to the KeyValueStore interface.
// Items live at accounts/<accountID>/<network>/<key>, one document per key,
// so any install signed in to the same account reads the same record. The
// writing device is stamped on the document but is not part of its path.
type FirestoreStore struct {
	F         *Firestore
	AccountID string
	Network   string
	DeviceID  string
	Device    DeviceInfo
}

func NewFirestoreStore(f *Firestore, accountID, network, deviceID string) *FirestoreStore {
	return &FirestoreStore{
		F:         f,
		AccountID: accountID,
		Network:   network,
		DeviceID:  deviceID,
		Device:    GetDeviceInfo(),
	}
}

type kvItem struct {
	Value     string     `firestore:"value"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
	DeviceID  string     `firestore:"deviceId"`
	Device    DeviceInfo `firestore:"device"`
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.F.Client.Collection("accounts").Doc(s.AccountID).Collection(s.Network).Doc(key)
}

// SetItem overwrites the whole document; no merge, so a reader sees either
// the old or the new value.
func (s *FirestoreStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.doc(key).Set(ctx, kvItem{
		Value:     value,
		UpdatedAt: time.Now(),
		DeviceID:  s.DeviceID,
		Device:    s.Device,
	})
	return unavailable(err, "firestore set %s/%s/%s", s.AccountID, s.Network, key)
}

// GetItem returns a NotFound error for a missing document. The client
// reports that as codes.NotFound together with a snapshot that does not
// exist; both are treated the same.
func (s *FirestoreStore) GetItem(ctx context.Context, key string) (string, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return "", unavailable(err, "firestore get %s/%s/%s", s.AccountID, s.Network, key)
	}
	if snap == nil || !snap.Exists() {
		return "", errors.NotFoundf("firestore item %q", key)
	}
	var it kvItem
	if err := snap.DataTo(&it); err != nil {
		return "", errors.Annotatef(err, "decode firestore item %q", key)
	}
	return it.Value, nil
}
