package internal

import (
	"context"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Agent is a fully wired backup workflow plus the resources it owns.
type Agent struct {
	Config   Config
	Workflow *Workflow
	Metrics  *Metrics
	Files    *DaemonFiles

	firestore *Firestore
}

// NewAgent builds the workflow for cfg. The platform backend is chosen here
// and stays fixed for the agent's lifetime.
func NewAgent(ctx context.Context, cfg Config, clk clock.Clock, l Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if clk == nil {
		clk = clock.WallClock
	}
	a := &Agent{Config: cfg, Metrics: NewMetrics()}
	a.Files = NewDaemonFiles(cfg.LndDir, cfg.Network, l)

	var source Source = a.Files
	if cfg.Source == SourceREST {
		rest, err := NewDaemonREST(cfg.Daemon)
		if err != nil {
			return nil, errors.Annotate(err, "daemon rest source")
		}
		source = rest
	}

	var cloud, external Backend
	var gate Gate
	switch cfg.Platform {
	case PlatformIOS:
		deviceID, err := DeviceID()
		if err != nil {
			return nil, errors.Trace(err)
		}
		fs, err := NewFirestore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.Credentials)
		if err != nil {
			return nil, errors.Annotate(err, "firestore init")
		}
		a.firestore = fs
		cloud = NewCloudBackend(NewFirestoreStore(fs, cfg.Firestore.AccountID, cfg.Network, deviceID))
	case PlatformAndroid:
		requester, err := permissionRequester(cfg)
		if err != nil {
			return nil, errors.Trace(err)
		}
		external = NewExternalBackend(cfg.ExternalDir, cfg.Namespace, cfg.Network)
		gate = NewPermissionGate(requester, l)
	default:
		logger.Warningf("platform %q has no backup target; push and fetch are no-ops", cfg.Platform)
	}

	var transport Transport
	switch cfg.Transport {
	case TransportStream:
		t, err := NewRESTTransport(cfg.Daemon, clk, l)
		if err != nil {
			a.Close()
			return nil, errors.Annotate(err, "daemon stream transport")
		}
		transport = t
	case TransportFile:
		transport = NewFileTransport(a.Files.SCBPath(), clk, l)
	}

	wf, err := NewWorkflow(WorkflowConfig{
		Strategy:     SelectStrategy(cfg.Platform, cloud, external, gate),
		Source:       source,
		Transport:    transport,
		Clock:        clk,
		PollInterval: cfg.PollInterval,
		OpTimeout:    cfg.OpTimeout,
		Metrics:      a.Metrics,
		Logger:       l,
	})
	if err != nil {
		a.Close()
		return nil, errors.Trace(err)
	}
	a.Workflow = wf
	return a, nil
}

func permissionRequester(cfg Config) (PermissionRequester, error) {
	if cfg.Permissions == "os" {
		return OSPermissions{Root: cfg.ExternalDir}, nil
	}
	st, err := ParsePermissionState(cfg.Permissions)
	if err != nil {
		return nil, errors.Annotate(err, "permissions")
	}
	return StaticPermissions{State: st}, nil
}

func (a *Agent) Close() {
	if a.firestore != nil {
		a.firestore.Close()
		a.firestore = nil
	}
}
