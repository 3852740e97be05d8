package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Components reported by felt serve
const (
	ComponentRegistry = "registry"
	ComponentAPI      = "api"
	ComponentStorage  = "storage"
)

// Report statuses
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
	StatusReady       = "ready"
	StatusNotReady    = "not_ready"
)

// Component is the last reported state of one part of the server. Since is
// when Healthy last changed.
type Component struct {
	Healthy bool      `json:"healthy"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

// Load is the session load attached to health reports
type Load struct {
	Sessions     int `json:"sessions"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	Leases       int `json:"leases"`
}

// Report is the body of /health and /ready
type Report struct {
	Status     string               `json:"status"`
	Message    string               `json:"message,omitempty"`
	Components map[string]Component `json:"components"`
	Load       *Load                `json:"load,omitempty"`
	Version    string               `json:"version,omitempty"`
	Uptime     string               `json:"uptime"`
}

type probes struct {
	mu         sync.RWMutex
	components map[string]Component
	critical   []string
	source     StatsSource
	version    string
	started    time.Time
}

var health = newProbes()

func newProbes() *probes {
	return &probes{
		components: make(map[string]Component),
		critical:   []string{ComponentRegistry, ComponentAPI},
		started:    time.Now(),
	}
}

// SetCriticalComponents replaces the components readiness waits for
func SetCriticalComponents(names ...string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.critical = append([]string(nil), names...)
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// SetStatsSource attaches the registry whose load is included in reports
func SetStatsSource(src StatsSource) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.source = src
}

// RegisterComponent adds or replaces a component
func RegisterComponent(name string, healthy bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.set(name, healthy, message)
}

// UpdateComponent changes a registered component and reports whether it
// was registered. Unknown components are ignored, so optional parts such as
// storage only show up when they are configured.
func UpdateComponent(name string, healthy bool, message string) bool {
	health.mu.Lock()
	defer health.mu.Unlock()
	if _, ok := health.components[name]; !ok {
		return false
	}
	health.set(name, healthy, message)
	return true
}

func (p *probes) set(name string, healthy bool, message string) {
	c, ok := p.components[name]
	if !ok || c.Healthy != healthy {
		c.Since = time.Now()
	}
	c.Healthy = healthy
	c.Message = message
	p.components[name] = c
}

// Ready reports whether every critical component is registered and healthy
func Ready() bool {
	return GetReadiness().Status == StatusReady
}

func (p *probes) report(status string) Report {
	comps := make(map[string]Component, len(p.components))
	for name, c := range p.components {
		comps[name] = c
	}
	rep := Report{
		Status:     status,
		Components: comps,
		Version:    p.version,
		Uptime:     time.Since(p.started).Round(time.Second).String(),
	}
	if p.source != nil {
		st := p.source.Stats()
		rep.Load = &Load{
			Sessions:     st.PublicSessions + st.PrivateSessions,
			Connected:    st.Connected,
			Disconnected: st.Disconnected,
			Leases:       st.ItemLeases + st.StackLeases,
		}
	}
	return rep
}

// notReady explains the first critical component that is missing or
// unhealthy, or returns ""
func (p *probes) notReady() string {
	for _, name := range p.critical {
		c, ok := p.components[name]
		switch {
		case !ok:
			return name + ": not started"
		case !c.Healthy && c.Message != "":
			return name + ": " + c.Message
		case !c.Healthy:
			return name + ": unhealthy"
		}
	}
	return ""
}

// GetHealth reports the server as unavailable when a critical component is
// down and degraded when only an optional one is
func GetHealth() Report {
	health.mu.RLock()
	defer health.mu.RUnlock()

	for _, name := range health.critical {
		if c, ok := health.components[name]; ok && !c.Healthy {
			rep := health.report(StatusUnavailable)
			rep.Message = name + ": " + c.Message
			return rep
		}
	}
	for name, c := range health.components {
		if !c.Healthy {
			rep := health.report(StatusDegraded)
			rep.Message = name + ": " + c.Message
			return rep
		}
	}
	return health.report(StatusOK)
}

// GetReadiness reports whether the server should receive connections
func GetReadiness() Report {
	health.mu.RLock()
	defer health.mu.RUnlock()

	if why := health.notReady(); why != "" {
		rep := health.report(StatusNotReady)
		rep.Message = why
		return rep
	}
	return health.report(StatusReady)
}

func writeReport(w http.ResponseWriter, rep Report, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(rep)
}

// HealthHandler serves GetHealth. Only an unavailable server answers 503.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := GetHealth()
		writeReport(w, rep, rep.Status != StatusUnavailable)
	}
}

// ReadyHandler serves GetReadiness
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := GetReadiness()
		writeReport(w, rep, rep.Status == StatusReady)
	}
}

// LivenessHandler answers 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health.mu.RLock()
		uptime := time.Since(health.started).Round(time.Second).String()
		health.mu.RUnlock()
		writeReport(w, Report{Status: "alive", Uptime: uptime}, true)
	}
}
