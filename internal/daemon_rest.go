package internal

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
)

// DaemonREST talks to the daemon's REST proxy.
type DaemonREST struct {
	BaseURL  string
	Macaroon string // hex encoded
	Client   *http.Client
}

// DaemonConfig locates the daemon REST endpoint and its credentials.
type DaemonConfig struct {
	RESTURL      string `yaml:"rest_url"`
	TLSCertPath  string `yaml:"tls_cert"`
	MacaroonPath string `yaml:"macaroon"`
}

// TLSConfig pins the daemon's self-signed certificate when one is configured.
func (c DaemonConfig) TLSConfig() (*tls.Config, error) {
	if c.TLSCertPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.TLSCertPath)
	if err != nil {
		return nil, errors.Annotatef(err, "read daemon tls cert")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.NotValidf("daemon tls cert %s", c.TLSCertPath)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// MacaroonHex loads the macaroon file as the hex header value.
func (c DaemonConfig) MacaroonHex() (string, error) {
	if c.MacaroonPath == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.MacaroonPath)
	if err != nil {
		return "", errors.Annotatef(err, "read macaroon")
	}
	return hex.EncodeToString(b), nil
}

func NewDaemonREST(cfg DaemonConfig) (*DaemonREST, error) {
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
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return &DaemonREST{
		BaseURL:  strings.TrimRight(base, "/"),
		Macaroon: mac,
		Client:   &http.Client{Timeout: 10 * time.Second, Transport: tr},
	}, nil
}

func (d *DaemonREST) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if d.Macaroon != "" {
		req.Header.Set("Grpc-Metadata-Macaroon", d.Macaroon)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errors.NotFoundf("daemon %s", path)
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("daemon GET %s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ReadSCB exports all channel backups. The REST proxy already renders the
// packed multi-channel backup bytes as base64.
func (d *DaemonREST) ReadSCB(ctx context.Context) (string, error) {
	var out struct {
		MultiChanBackup struct {
			MultiChanBackup string `json:"multi_chan_backup"`
		} `json:"multi_chan_backup"`
	}
	if err := d.get(ctx, "/v1/channels/backup", &out); err != nil {
		return "", errors.Annotate(err, "export channel backups")
	}
	if out.MultiChanBackup.MultiChanBackup == "" {
		return "", errors.NotFoundf("daemon channel backup")
	}
	return out.MultiChanBackup.MultiChanBackup, nil
}
