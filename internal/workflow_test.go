package internal

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	blobA = []byte{0x00, 0x01, 0x02, 0xfe, 0xff, 'a'}
	blobB = []byte("second backup, longer than the first one")
)

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

type workflowFixture struct {
	wf      *Workflow
	log     *captureLogger
	clock   *testclock.Clock
	metrics *Metrics
}

func newWorkflowFixture(t *testing.T, s Strategy, src Source, tr Transport) workflowFixture {
	t.Helper()
	f := workflowFixture{
		log:     &captureLogger{},
		clock:   testclock.NewClock(time.Now()),
		metrics: NewMetrics(),
	}
	wf, err := NewWorkflow(WorkflowConfig{
		Strategy:     s,
		Source:       src,
		Transport:    tr,
		Clock:        f.clock,
		PollInterval: time.Minute,
		OpTimeout:    time.Second,
		Metrics:      f.metrics,
		Logger:       f.log,
	})
	require.NoError(t, err)
	f.wf = wf
	return f
}

func TestNewWorkflowValidates(t *testing.T) {
	_, err := NewWorkflow(WorkflowConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid))

	_, err = NewWorkflow(WorkflowConfig{Source: &fakeSource{}, Clock: testclock.NewClock(time.Now()), PollInterval: time.Second})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestUnsupportedPlatformIsNoop(t *testing.T) {
	for _, platform := range []string{"", "web", "windows", "IOS"} {
		t.Run(platform, func(t *testing.T) {
			cloud, external := newFakeBackend("cloud"), newFakeBackend("external")
			gate := &fakeGate{granted: true}
			src := &fakeSource{scbs: []string{b64(blobA)}}
			f := newWorkflowFixture(t, SelectStrategy(platform, cloud, external, gate), src, nil)

			f.wf.PushChannelBackup(context.Background())
			assert.Nil(t, f.wf.FetchChannelBackup(context.Background()))
			assert.Equal(t, OutcomeUnsupported, f.wf.Restore(context.Background()).Outcome)

			for _, b := range []*fakeBackend{cloud, external} {
				puts, gets := b.counts()
				assert.Zero(t, puts)
				assert.Zero(t, gets)
			}
			assert.Zero(t, src.calls.Load())
			assert.Zero(t, gate.calls.Load())
			assert.False(t, f.wf.RequestExternalStoragePermission(context.Background()))
		})
	}
}

func TestRoundTripPerBackend(t *testing.T) {
	cases := map[string]func(t *testing.T) Strategy{
		PlatformIOS: func(t *testing.T) Strategy {
			return SelectStrategy(PlatformIOS, NewCloudBackend(newMemStore()), nil, nil)
		},
		PlatformAndroid: func(t *testing.T) Strategy {
			ext := NewExternalBackend(t.TempDir(), "Lightning", "testnet")
			return SelectStrategy(PlatformAndroid, nil, ext, &fakeGate{granted: true})
		},
	}
	for name, strategy := range cases {
		t.Run(name, func(t *testing.T) {
			src := &fakeSource{scbs: []string{b64(blobA), b64(blobB)}}
			f := newWorkflowFixture(t, strategy(t), src, nil)
			ctx := context.Background()

			f.wf.PushChannelBackup(ctx)
			assert.Equal(t, blobA, f.wf.FetchChannelBackup(ctx))

			// A newer backup supersedes the old one.
			f.wf.PushChannelBackup(ctx)
			res := f.wf.Restore(ctx)
			assert.Equal(t, OutcomeFound, res.Outcome)
			assert.NoError(t, res.Err)
			assert.Equal(t, blobB, res.SCB)
			assert.Zero(t, f.log.count("ERROR"))
		})
	}
}

func TestPermissionDeniedSkipsBackend(t *testing.T) {
	external := newFakeBackend("external")
	gate := &fakeGate{granted: false}
	src := &fakeSource{scbs: []string{b64(blobA)}}
	f := newWorkflowFixture(t, SelectStrategy(PlatformAndroid, nil, external, gate), src, nil)
	ctx := context.Background()

	f.wf.PushChannelBackup(ctx)
	assert.True(t, f.log.has("INFO", "Skipping channel backup due to missing permissions"))
	assert.Zero(t, f.log.count("ERROR"))

	res := f.wf.Restore(ctx)
	assert.Equal(t, OutcomePermissionDenied, res.Outcome)
	assert.True(t, errors.Is(res.Err, errors.Forbidden))
	assert.Nil(t, f.wf.FetchChannelBackup(ctx))
	assert.True(t, f.log.has("INFO", "Skipping channel restore: missing storage permissions"))

	puts, gets := external.counts()
	assert.Zero(t, puts)
	assert.Zero(t, gets)
	assert.Zero(t, src.calls.Load())
	assert.EqualValues(t, 3, gate.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.pushes.WithLabelValues("external", "skipped")))
}

func TestGateAskedOnEveryOperation(t *testing.T) {
	external := newFakeBackend("external")
	gate := &fakeGate{granted: true}
	f := newWorkflowFixture(t, SelectStrategy(PlatformAndroid, nil, external, gate), &fakeSource{scbs: []string{b64(blobA)}}, nil)
	ctx := context.Background()

	f.wf.PushChannelBackup(ctx)
	f.wf.PushChannelBackup(ctx)
	f.wf.FetchChannelBackup(ctx)
	assert.EqualValues(t, 3, gate.calls.Load())
	assert.True(t, f.wf.RequestExternalStoragePermission(ctx))

	gate.granted = false
	f.wf.PushChannelBackup(ctx)
	puts, _ := external.counts()
	assert.Equal(t, 2, puts)
}

func TestPushIsIdempotent(t *testing.T) {
	once, twice := newFakeBackend("cloud"), newFakeBackend("cloud")
	src := &fakeSource{scbs: []string{b64(blobA)}}
	ctx := context.Background()

	f1 := newWorkflowFixture(t, SelectStrategy(PlatformIOS, once, nil, nil), src, nil)
	f1.wf.PushChannelBackup(ctx)

	f2 := newWorkflowFixture(t, SelectStrategy(PlatformIOS, twice, nil, nil), src, nil)
	f2.wf.PushChannelBackup(ctx)
	f2.wf.PushChannelBackup(ctx)

	assert.Equal(t, once.snapshot(), twice.snapshot())
	assert.Equal(t, f1.wf.FetchChannelBackup(ctx), f2.wf.FetchChannelBackup(ctx))
}

func TestConcurrentPushesLastWriterWins(t *testing.T) {
	ext := NewExternalBackend(t.TempDir(), "Lightning", "mainnet")
	src := &fakeSource{scbs: []string{b64(blobA), b64(blobB)}}
	f := newWorkflowFixture(t, SelectStrategy(PlatformAndroid, nil, ext, &fakeGate{granted: true}), src, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.wf.PushChannelBackup(ctx)
		}()
	}
	wg.Wait()

	got := f.wf.FetchChannelBackup(ctx)
	assert.Contains(t, [][]byte{blobA, blobB}, got)
	assert.Zero(t, f.log.count("ERROR"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.pushes.WithLabelValues("external", "ok")))
}

func TestFetchEmptyCloudIsAbsent(t *testing.T) {
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, NewCloudBackend(newMemStore()), nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, nil)

	res := f.wf.Restore(context.Background())
	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.True(t, errors.Is(res.Err, errors.NotFound))
	assert.Nil(t, f.wf.FetchChannelBackup(context.Background()))
	assert.Zero(t, f.log.count("ERROR"))
	assert.True(t, f.log.has("INFO", "No channel backup found in cloud storage"))
}

func TestPushPutFailureIsLoggedNotRaised(t *testing.T) {
	external := newFakeBackend("external")
	external.putErr = errors.WithType(errors.New("disk full"), ErrBackendUnavailable)
	f := newWorkflowFixture(t, SelectStrategy(PlatformAndroid, nil, external, &fakeGate{granted: true}), &fakeSource{scbs: []string{b64(blobA)}}, nil)

	f.wf.PushChannelBackup(context.Background())

	puts, _ := external.counts()
	assert.Equal(t, 1, puts)
	assert.True(t, f.log.has("ERROR", "Uploading channel backup to external storage failed"))
	assert.True(t, f.log.has("ERROR", "disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.pushes.WithLabelValues("external", "put_error")))
}

func TestPushSourceFailureSkipsPut(t *testing.T) {
	cloud := newFakeBackend("cloud")
	src := &fakeSource{err: errors.NotFoundf("daemon channel backup")}
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), src, nil)

	f.wf.PushChannelBackup(context.Background())

	puts, _ := cloud.counts()
	assert.Zero(t, puts)
	assert.True(t, f.log.has("ERROR", "Reading channel backup from daemon failed"))
}

func TestFetchBackendFailureIsAbsent(t *testing.T) {
	cloud := newFakeBackend("cloud")
	cloud.getErr = errors.WithType(errors.New("not signed in"), ErrBackendUnavailable)
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, nil)

	res := f.wf.Restore(context.Background())
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.True(t, errors.Is(res.Err, ErrBackendUnavailable))
	assert.Nil(t, res.SCB)
	assert.Zero(t, f.log.count("ERROR"))
	assert.True(t, f.log.has("INFO", "Failed to read channel backup from cloud"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fetches.WithLabelValues("cloud", "unavailable")))
}

func TestFetchCorruptEncodingIsAbsent(t *testing.T) {
	cloud := newFakeBackend("cloud")
	cloud.data[SCBKey] = "not base64!"
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, nil)

	res := f.wf.Restore(context.Background())
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.True(t, errors.Is(res.Err, errors.NotValid))
}

func TestPushIsBoundedByOpTimeout(t *testing.T) {
	cloud := newFakeBackend("cloud")
	cloud.block = true
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, nil)
	f.wf.cfg.OpTimeout = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		f.wf.PushChannelBackup(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push did not return after the op timeout")
	}
	assert.True(t, f.log.has("ERROR", "Uploading channel backup to cloud storage failed"))
}

func TestSubscribePushesOncePerDataEvent(t *testing.T) {
	cloud := newFakeBackend("cloud")
	src := &fakeSource{scbs: []string{b64(blobA)}}
	tr := &chanTransport{ch: make(chan Event, 8)}
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), src, tr)

	tr.ch <- Event{Kind: EventData}
	tr.ch <- Event{Kind: EventData}
	tr.ch <- Event{Kind: EventError, Err: errors.WithType(errors.New("connection reset"), ErrStreamFault)}
	tr.ch <- Event{Kind: EventData}
	tr.ch <- Event{Kind: EventStatus, Status: "disconnected"}
	close(tr.ch)

	f.wf.SubscribeChannelBackups(context.Background())

	assert.Equal(t, []string{SubscribeChannelBackups}, tr.names)
	assert.EqualValues(t, 3, src.calls.Load())
	puts, _ := cloud.counts()
	assert.Equal(t, 3, puts)
	assert.True(t, f.log.has("ERROR", "Channel backup error: connection reset"))
	assert.True(t, f.log.has("INFO", "Channel backup status: disconnected"))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("data")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.events.WithLabelValues("error")))
}

func TestSubscribeWithoutTransportReturns(t *testing.T) {
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, newFakeBackend("cloud"), nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, nil)
	f.wf.SubscribeChannelBackups(context.Background())
	assert.True(t, f.log.has("INFO", "no backup stream configured"))
}

func TestSubscribeStopsOnCancel(t *testing.T) {
	tr := &chanTransport{ch: make(chan Event)}
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, newFakeBackend("cloud"), nil, nil), &fakeSource{scbs: []string{b64(blobA)}}, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.wf.SubscribeChannelBackups(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not stop")
	}
}

func TestPollPushesEveryInterval(t *testing.T) {
	cloud := newFakeBackend("cloud")
	src := &fakeSource{scbs: []string{b64(blobA)}}
	f := newWorkflowFixture(t, SelectStrategy(PlatformIOS, cloud, nil, nil), src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.wf.PollPushChannelBackup(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, f.clock.WaitAdvance(time.Minute, 5*time.Second, 1))
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, 5*time.Second, time.Millisecond)
	require.NoError(t, f.clock.WaitAdvance(time.Minute, 5*time.Second, 1))
	require.Eventually(t, func() bool { return src.calls.Load() == 3 }, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop did not stop")
	}
	puts, _ := cloud.counts()
	assert.GreaterOrEqual(t, puts, 3)
}
