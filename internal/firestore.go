package internal

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

type Firestore struct {
	Client *firestore.Client
	ProjID string
}

// NewFirestore connects with GOOGLE_APPLICATION_CREDENTIALS when set and
// usable, falling back to credsPath. With FIRESTORE_EMULATOR_HOST set the
// client talks to the emulator and needs no credentials.
func NewFirestore(ctx context.Context, projectID, credsPath string) (*Firestore, error) {
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		client, err := firestore.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore client for emulator %s: %w", host, err)
		}
		return &Firestore{Client: client, ProjID: projectID}, nil
	}
	env := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	if env != "" {
		client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(env))
		if err == nil {
			return &Firestore{Client: client, ProjID: projectID}, nil
		}
		logger.Warningf("firestore credentials from GOOGLE_APPLICATION_CREDENTIALS unusable: %v", err)
	}
	if credsPath != "" {
		if fi, err := os.Stat(credsPath); err == nil && !fi.IsDir() {
			client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credsPath))
			if err != nil {
				return nil, fmt.Errorf("failed to create Firestore client using %s (try setting GOOGLE_APPLICATION_CREDENTIALS): %w", credsPath, err)
			}
			return &Firestore{Client: client, ProjID: projectID}, nil
		}
	}
	if env != "" {
		return nil, fmt.Errorf("failed to create Firestore client with GOOGLE_APPLICATION_CREDENTIALS=%s", env)
	}
	return nil, fmt.Errorf("service account credentials not found: set GOOGLE_APPLICATION_CREDENTIALS or place key at %s", credsPath)
}

func (f *Firestore) Close() {
	_ = f.Client.Close()
}
