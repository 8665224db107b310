package internal

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// ExternalBackend mirrors the backup into user-visible device storage at
// <Root>/<Namespace>/<Network>/<key>. Files hold the raw SCB bytes, the
// same format the daemon writes.
type ExternalBackend struct {
	Root      string
	Namespace string
	Network   string
}

func NewExternalBackend(root, namespace, network string) *ExternalBackend {
	return &ExternalBackend{Root: root, Namespace: namespace, Network: network}
}

func (b *ExternalBackend) Name() string { return "external" }

// Dir is the per-network directory holding the mirrored backup.
func (b *ExternalBackend) Dir() string {
	return filepath.Join(b.Root, b.Namespace, b.Network)
}

func (b *ExternalBackend) Path(key string) string {
	return filepath.Join(b.Dir(), key)
}

func (b *ExternalBackend) Put(ctx context.Context, key, scbBase64 string) error {
	raw, err := base64.StdEncoding.DecodeString(scbBase64)
	if err != nil {
		return errors.NotValidf("channel backup encoding (%v)", err)
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if err := os.MkdirAll(b.Dir(), 0o755); err != nil {
		return unavailable(err, "create %s", b.Dir())
	}
	return unavailable(writeFileAtomic(b.Path(key), raw, 0o644), "write %s", b.Path(key))
}

func (b *ExternalBackend) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	raw, err := os.ReadFile(b.Path(key))
	if os.IsNotExist(err) {
		return "", errors.NotFoundf("channel backup at %s", b.Path(key))
	}
	if err != nil {
		return "", unavailable(err, "read %s", b.Path(key))
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it over path, so readers never observe a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
