//go:build !unix

package internal

import (
	"context"
	"os"

	"github.com/juju/errors"
)

// OSPermissions grants external-storage writes when a probe file can be
// created under Root.
type OSPermissions struct{ Root string }

func (o OSPermissions) Request(ctx context.Context, p Permission) (PermissionState, error) {
	if p != PermissionWriteExternalStorage {
		return PermissionUnknown, errors.NotSupportedf("permission %s", p)
	}
	if err := ctx.Err(); err != nil {
		return PermissionUnknown, errors.Trace(err)
	}
	if fi, err := os.Stat(o.Root); err != nil {
		return PermissionUnknown, errors.Annotatef(err, "stat %s", o.Root)
	} else if !fi.IsDir() {
		return PermissionUnknown, errors.NotValidf("external root %s", o.Root)
	}
	f, err := os.CreateTemp(o.Root, ".scb-probe-*")
	if os.IsPermission(err) {
		return PermissionDenied, nil
	}
	if err != nil {
		return PermissionUnknown, errors.Annotatef(err, "probe %s", o.Root)
	}
	f.Close()
	os.Remove(f.Name())
	return PermissionGranted, nil
}
