//go:build unix

package internal

import (
	"context"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// OSPermissions grants external-storage writes when the process can write
// to Root.
type OSPermissions struct{ Root string }

func (o OSPermissions) Request(ctx context.Context, p Permission) (PermissionState, error) {
	if p != PermissionWriteExternalStorage {
		return PermissionUnknown, errors.NotSupportedf("permission %s", p)
	}
	if err := ctx.Err(); err != nil {
		return PermissionUnknown, errors.Trace(err)
	}
	switch err := unix.Access(o.Root, unix.W_OK); err {
	case nil:
		return PermissionGranted, nil
	case unix.EACCES, unix.EPERM, unix.EROFS:
		return PermissionDenied, nil
	default:
		return PermissionUnknown, errors.Annotatef(err, "access %s", o.Root)
	}
}
