package internal

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// Source yields the daemon's current channel backup in base64.
type Source interface {
	ReadSCB(ctx context.Context) (string, error)
}

// DaemonFiles reads the daemon's data directory directly.
type DaemonFiles struct {
	LndDir  string
	Network string
	Logger  Logger
}

func NewDaemonFiles(lndDir, network string, l Logger) *DaemonFiles {
	return &DaemonFiles{LndDir: lndDir, Network: network, Logger: childLogger(l, "daemon")}
}

func (d *DaemonFiles) chainDir(network string) string {
	return filepath.Join(d.LndDir, "data", "chain", "bitcoin", network)
}

// SCBPath is where the daemon keeps its multi-channel backup file.
func (d *DaemonFiles) SCBPath() string {
	return filepath.Join(d.chainDir(d.Network), SCBKey)
}

func (d *DaemonFiles) ReadSCB(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	raw, err := os.ReadFile(d.SCBPath())
	if os.IsNotExist(err) {
		return "", errors.NotFoundf("daemon channel backup %s", d.SCBPath())
	}
	if err != nil {
		return "", errors.Annotatef(err, "read %s", d.SCBPath())
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DeleteWalletDB removes the network's wallet.db so the wallet can be
// restored from seed when the PIN is lost. A missing wallet is not an error.
func (d *DaemonFiles) DeleteWalletDB(network string) error {
	path := filepath.Join(d.chainDir(network), "wallet.db")
	err := os.Remove(path)
	if os.IsNotExist(err) {
		d.Logger.Infof("No %s wallet to delete.", network)
		return nil
	}
	return errors.Annotatef(err, "delete %s", path)
}
