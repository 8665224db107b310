package internal

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewStatusRouter serves metrics, a health summary and a manual push trigger.
func NewStatusRouter(reg *prometheus.Registry, wf *Workflow, network string) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		s := wf.Strategy()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"platform":  s.Platform,
			"backend":   s.backendName(),
			"supported": s.Supported(),
			"network":   network,
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/push", func(w http.ResponseWriter, req *http.Request) {
		wf.PushChannelBackup(req.Context())
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodPost)
	return r
}
