package internal

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
)

const (
	defaultStreamMinBackoff = time.Second
	defaultStreamMaxBackoff = time.Minute
)

// streamRoutes maps stream names to the daemon REST proxy's websocket paths.
var streamRoutes = map[string]string{
	SubscribeChannelBackups: "/v1/channels/backup/subscribe",
}

// RESTTransport subscribes to daemon streams over the REST proxy's
// websocket endpoints and reconnects with exponential backoff.
type RESTTransport struct {
	BaseURL    string
	Macaroon   string
	TLS        *tls.Config
	Clock      clock.Clock
	Logger     Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func NewRESTTransport(cfg DaemonConfig, clk clock.Clock, l Logger) (*RESTTransport, error) {
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, errors.Trace(err)
	}
	mac, err := cfg.MacaroonHex()
	if err != nil {
		return nil, errors.Trace(err)
	}
	base := cfg.RESTURL
	if base == "" {
		base = "https://127.0.0.1:8080"
	}
	return &RESTTransport{
		BaseURL:  base,
		Macaroon: mac,
		TLS:      tlsCfg,
		Clock:    clk,
		Logger:   childLogger(l, "transport"),
	}, nil
}

func (t *RESTTransport) streamURL(path string) (string, error) {
	u, err := url.Parse(t.BaseURL)
	if err != nil {
		return "", errors.Annotatef(err, "daemon url %q", t.BaseURL)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", errors.NotValidf("daemon url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = "method=GET"
	return u.String(), nil
}

func (t *RESTTransport) Subscribe(ctx context.Context, eventName string) (<-chan Event, error) {
	path, ok := streamRoutes[eventName]
	if !ok {
		return nil, errors.NotFoundf("stream %q", eventName)
	}
	u, err := t.streamURL(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	ch := make(chan Event, 16)
	go t.run(ctx, u, ch)
	return ch, nil
}

func (t *RESTTransport) backoff() func(time.Duration, int) time.Duration {
	return streamBackoff(t.MinBackoff, t.MaxBackoff)
}

// streamBackoff is the reconnect schedule shared by the transports.
func streamBackoff(lo, hi time.Duration) func(time.Duration, int) time.Duration {
	if lo <= 0 {
		lo = defaultStreamMinBackoff
	}
	if hi < lo {
		hi = defaultStreamMaxBackoff
	}
	return retry.ExpBackoff(lo, hi, 2, false)
}

func (t *RESTTransport) run(ctx context.Context, u string, ch chan<- Event) {
	defer close(ch)
	backoff := t.backoff()
	attempt := 0
	for {
		session := GenerateUUID()
		delivered, err := t.session(ctx, u, session, ch)
		if ctx.Err() != nil {
			sendFinal(ch, Event{Kind: EventStatus, Session: session, Status: "closed"})
			return
		}
		if !send(ctx, ch, Event{Kind: EventError, Session: session, Err: errors.WithType(err, ErrStreamFault)}) {
			return
		}
		if !send(ctx, ch, Event{Kind: EventStatus, Session: session, Status: "disconnected"}) {
			return
		}
		if delivered {
			attempt = 0
		}
		attempt++
		delay := backoff(0, attempt)
		t.Logger.Debugf("reconnecting channel backup stream in %s", delay)
		select {
		case <-ctx.Done():
			sendFinal(ch, Event{Kind: EventStatus, Session: session, Status: "closed"})
			return
		case <-t.Clock.After(delay):
		}
	}
}

type streamFrame struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// session runs one websocket connection until it fails or ctx ends. It
// reports whether any data event was delivered.
func (t *RESTTransport) session(ctx context.Context, u, id string, ch chan<- Event) (bool, error) {
	hdr := http.Header{}
	if t.Macaroon != "" {
		hdr.Set("Grpc-Metadata-Macaroon", t.Macaroon)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  t.TLS,
	}
	conn, _, err := dialer.DialContext(ctx, u, hdr)
	if err != nil {
		return false, errors.Annotatef(err, "dial %s", u)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	t.Logger.Infof("channel backup stream %s open", id)
	delivered := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return delivered, errors.Annotatef(err, "stream %s", id)
		}
		var f streamFrame
		if err := json.Unmarshal(msg, &f); err != nil {
			if !send(ctx, ch, Event{Kind: EventError, Session: id, Err: errors.WithType(errors.Annotate(err, "decode frame"), ErrStreamFault)}) {
				return delivered, ctx.Err()
			}
			continue
		}
		if f.Error != nil {
			err := errors.Errorf("daemon error %d: %s", f.Error.Code, f.Error.Message)
			if !send(ctx, ch, Event{Kind: EventError, Session: id, Err: errors.WithType(err, ErrStreamFault)}) {
				return delivered, ctx.Err()
			}
			continue
		}
		if !send(ctx, ch, Event{Kind: EventData, Session: id}) {
			return delivered, ctx.Err()
		}
		delivered = true
	}
}
