package internal

import (
	"context"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// Gate authorizes access to storage that needs an OS permission.
type Gate interface {
	RequestExternalStoragePermission(ctx context.Context) bool
}

// Strategy is the backend choice for one platform, made once per session.
// A nil Backend means the platform has no backup target.
type Strategy struct {
	Platform string
	Backend  Backend
	Gate     Gate
}

func (s Strategy) Supported() bool { return s.Backend != nil }

func (s Strategy) backendName() string {
	if s.Backend == nil {
		return "none"
	}
	return s.Backend.Name()
}

// SelectStrategy maps the platform to its backend: the cloud store on iOS,
// permission-gated external storage on Android, nothing elsewhere.
func SelectStrategy(platform string, cloud, external Backend, gate Gate) Strategy {
	switch platform {
	case PlatformIOS:
		return Strategy{Platform: platform, Backend: cloud}
	case PlatformAndroid:
		return Strategy{Platform: platform, Backend: external, Gate: gate}
	}
	return Strategy{Platform: platform}
}
