// Package admin exposes the cluster manager's read-only operational
// surface over HTTP: per-cluster membership and health, plus the
// Prometheus stats registry. Grounded on internal/handler/admin.go's
// AdminHandler (gorilla/mux routes, JSON response shapes), narrowed
// from a full backend-CRUD API to a read-only contract — cluster
// membership changes only ever come from discovery, never from an
// admin API call.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// ManagerView is the read-only slice of manager.Manager this package
// depends on, kept narrow so admin doesn't import manager's full
// mutation surface.
type ManagerView interface {
	ClusterNames() []string
	Get(name string) (*upstream.ClusterInfo, bool)
	HostSet(name string) (*upstream.HostSet, bool)
}

// Handler serves the admin HTTP surface.
type Handler struct {
	manager   ManagerView
	registry  *prometheus.Registry
	log       *logger.Logger
	startTime time.Time
}

// NewHandler builds a Handler backed by m and registry (typically
// (*stats.Store).Registry()).
func NewHandler(m ManagerView, registry *prometheus.Registry, log *logger.Logger) *Handler {
	return &Handler{manager: m, registry: registry, log: log.AdminLogger(), startTime: time.Now()}
}

// Router builds the mux.Router serving this handler's endpoints:
//
//	GET /clusters               list every registered cluster
//	GET /clusters/{name}        one cluster's info and member counts
//	GET /clusters/{name}/hosts  one cluster's full host membership
//	GET /healthz                liveness — always 200 once the process is up
//	GET /metrics                Prometheus exposition
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/clusters", h.listClusters).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{name}", h.getCluster).Methods(http.MethodGet)
	r.HandleFunc("/clusters/{name}/hosts", h.listHosts).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

type clusterSummary struct {
	Name         string `json:"name"`
	LBType       string `json:"lb_type"`
	TotalHosts   int    `json:"total_hosts"`
	HealthyHosts int    `json:"healthy_hosts"`
}

func (h *Handler) listClusters(w http.ResponseWriter, r *http.Request) {
	names := h.manager.ClusterNames()
	out := make([]clusterSummary, 0, len(names))
	for _, name := range names {
		info, ok := h.manager.Get(name)
		if !ok {
			continue
		}
		summary := clusterSummary{Name: name, LBType: string(info.LBType)}
		if hs, ok := h.manager.HostSet(name); ok {
			summary.TotalHosts = len(hs.Hosts())
			summary.HealthyHosts = len(hs.HealthyHosts())
		}
		out = append(out, summary)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getCluster(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, ok := h.manager.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found: "+name)
		return
	}
	summary := clusterSummary{Name: name, LBType: string(info.LBType)}
	if hs, ok := h.manager.HostSet(name); ok {
		summary.TotalHosts = len(hs.Hosts())
		summary.HealthyHosts = len(hs.HealthyHosts())
	}
	writeJSON(w, http.StatusOK, summary)
}

type hostView struct {
	Address string `json:"address"`
	Zone    string `json:"zone,omitempty"`
	Healthy bool   `json:"healthy"`
}

func (h *Handler) listHosts(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	hs, ok := h.manager.HostSet(name)
	if !ok {
		writeError(w, http.StatusNotFound, "cluster not found: "+name)
		return
	}
	hosts := hs.Hosts()
	out := make([]hostView, len(hosts))
	for i, host := range hosts {
		out[i] = hostView{Address: host.Address(), Zone: host.Zone, Healthy: host.IsHealthy()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(h.startTime).String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		_ = err
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
