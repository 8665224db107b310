package internal

import (
	"context"
	"strings"

	"github.com/juju/errors"
)

// Permission names an OS capability the backup needs.
type Permission string

const PermissionWriteExternalStorage Permission = "WRITE_EXTERNAL_STORAGE"

// PermissionState is the outcome of one permission request.
type PermissionState int

const (
	PermissionUnknown PermissionState = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionState) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// ParsePermissionState reads the config spelling of a state.
func ParsePermissionState(s string) (PermissionState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted":
		return PermissionGranted, nil
	case "denied":
		return PermissionDenied, nil
	case "", "unknown":
		return PermissionUnknown, nil
	}
	return PermissionUnknown, errors.NotValidf("permission state %q", s)
}

// PermissionRequester asks the platform for a permission. Already-granted
// permissions are expected to return immediately without prompting.
type PermissionRequester interface {
	Request(ctx context.Context, p Permission) (PermissionState, error)
}

// StaticPermissions answers every request with State.
type StaticPermissions struct{ State PermissionState }

func (s StaticPermissions) Request(ctx context.Context, p Permission) (PermissionState, error) {
	return s.State, nil
}

// PermissionGate authorizes external-storage access. It never caches: the
// OS permission can be revoked between calls, so every read or write asks
// again.
type PermissionGate struct {
	Requester PermissionRequester
	Logger    Logger
}

func NewPermissionGate(r PermissionRequester, l Logger) *PermissionGate {
	return &PermissionGate{Requester: r, Logger: childLogger(l, "permission")}
}

// RequestExternalStoragePermission reports whether writing to external
// storage is currently allowed. Errors and unknown answers count as denied.
func (g *PermissionGate) RequestExternalStoragePermission(ctx context.Context) bool {
	state, err := g.Requester.Request(ctx, PermissionWriteExternalStorage)
	if err != nil {
		g.Logger.Infof("permission %s request failed: %v", PermissionWriteExternalStorage, err)
		return false
	}
	g.Logger.Debugf("permission %s: %s", PermissionWriteExternalStorage, state)
	return state == PermissionGranted
}
