package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gobwas/glob"

	"github.com/go-drift/reactor/pkg/core"
	"github.com/go-drift/reactor/pkg/entity"
	"github.com/go-drift/reactor/pkg/task"
)

// debugServer manages the HTTP server for runtime inspection.
type debugServer struct {
	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
}

// Stats is the /stats response shape.
type Stats struct {
	Ticks         uint64     `json:"ticks"`
	DeferredTicks uint64     `json:"deferredTicks"`
	Pass          uint64     `json:"pass"`
	Phase         string     `json:"phase"`
	Entities      int        `json:"entities"`
	Mounted       int        `json:"mounted"`
	Windows       int        `json:"windows"`
	Dirty         int        `json:"dirty"`
	Tasks         task.Stats `json:"tasks"`
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	s := e.rt.Scheduler()
	return Stats{
		Ticks:         e.ticks.Load(),
		DeferredTicks: e.deferred.Load(),
		Pass:          s.Pass(),
		Phase:         s.Phase().String(),
		Entities:      e.rt.Store().Len(),
		Mounted:       len(s.Mounted()),
		Windows:       len(e.rt.Windows()),
		Dirty:         e.rt.Tracker().Len(),
		Tasks:         e.rt.Runner().Stats(),
	}
}

// StartDebugServer starts the HTTP debug server on the specified port.
// Returns the actual port (useful when port=0 for ephemeral allocation).
func (e *Engine) StartDebugServer(port int) (int, error) {
	e.debug.mu.Lock()
	defer e.debug.mu.Unlock()

	if e.debug.server != nil {
		return e.debug.listener.Addr().(*net.TCPAddr).Port, nil
	}

	// Bind listener first to fail fast on port conflicts
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return 0, fmt.Errorf("debug server listen: %w", err)
	}
	actualPort := listener.Addr().(*net.TCPAddr).Port

	server := &http.Server{Handler: e.debugHandler()}
	e.debug.server = server
	e.debug.listener = listener

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			e.debug.mu.Lock()
			e.debug.server = nil
			e.debug.listener = nil
			e.debug.mu.Unlock()
			e.logger.Error("debug server stopped", "error", err)
		}
	}()

	e.logger.Info("debug server listening", "port", actualPort)
	return actualPort, nil
}

// StopDebugServer gracefully shuts down the debug server.
func (e *Engine) StopDebugServer(ctx context.Context) {
	e.debug.mu.Lock()
	server := e.debug.server
	e.debug.server = nil
	e.debug.listener = nil
	e.debug.mu.Unlock()

	if server == nil {
		return
	}
	if err := server.Shutdown(ctx); err != nil {
		e.logger.Warn("debug server shutdown", "error", err)
	}
}

func (e *Engine) debugHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", getOnly(e.handleHealth))
	mux.HandleFunc("/stats", getOnly(e.handleStats))
	mux.HandleFunc("/entities", getOnly(e.handleEntities))
	mux.HandleFunc("/mounts", getOnly(e.handleMounts))
	mux.HandleFunc("/passes", getOnly(e.handlePasses))
	mux.HandleFunc("/runtime", getOnly(e.handleRuntime))
	mux.HandleFunc("/tree", getOnly(e.handleTree))
	return mux
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	// Encode to buffer first so we can catch errors
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("json encode error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleHealth returns a simple health check response.
func (e *Engine) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (e *Engine) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, e.Stats())
}

// handleEntities lists live entities, optionally filtered by a glob over
// the payload type name: /entities?type=*demo.*
func (e *Engine) handleEntities(w http.ResponseWriter, r *http.Request) {
	infos := e.rt.Store().Snapshot()
	if pattern := r.URL.Query().Get("type"); pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad type pattern: %v", err), http.StatusBadRequest)
			return
		}
		filtered := make([]entity.Info, 0, len(infos))
		for _, info := range infos {
			if g.Match(info.Type) {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	writeJSON(w, struct {
		Entities []entity.Info `json:"entities"`
	}{infos})
}

func (e *Engine) handleMounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		Mounts []core.MountInfo `json:"mounts"`
	}{e.rt.Scheduler().Mounted()})
}

// handlePasses returns recent pass samples. Query parameters: limit,
// min_ms, errors=true.
func (e *Engine) handlePasses(w http.ResponseWriter, r *http.Request) {
	resp := e.trace.Snapshot()
	applyPassFilters(r, &resp)
	writeJSON(w, resp)
}

func (e *Engine) handleRuntime(w http.ResponseWriter, r *http.Request) {
	if e.samples == nil {
		http.Error(w, "runtime sampling disabled", http.StatusServiceUnavailable)
		return
	}
	samples := e.samples.Snapshot()
	if limit := parseIntQuery(r, "limit"); limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	writeJSON(w, struct {
		IntervalMs int64           `json:"intervalMs"`
		WindowMs   int64           `json:"windowMs"`
		Samples    []RuntimeSample `json:"samples"`
	}{e.samples.Interval().Milliseconds(), e.samples.Window().Milliseconds(), samples})
}

// handleTree returns a window's current tree as an indented outline.
// The window defaults to the first open one.
func (e *Engine) handleTree(w http.ResponseWriter, r *http.Request) {
	windows := e.rt.Windows()
	want := parseIntQuery(r, "window")
	for _, win := range windows {
		if want == 0 || win.ID() == want {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, win.Tree().String())
			return
		}
	}
	http.Error(w, "no such window", http.StatusServiceUnavailable)
}

func applyPassFilters(r *http.Request, resp *PassTimeline) {
	var filters []func(PassSample) bool
	if v := parseFloatQuery(r, "min_ms"); v > 0 {
		filters = append(filters, func(s PassSample) bool { return s.PassMs >= v })
	}
	if value := r.URL.Query().Get("errors"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil && parsed {
			filters = append(filters, func(s PassSample) bool { return s.Error != "" })
		}
	}

	if len(filters) > 0 {
		filtered := make([]PassSample, 0, len(resp.Samples))
	outer:
		for _, sample := range resp.Samples {
			for _, f := range filters {
				if !f(sample) {
					continue outer
				}
			}
			filtered = append(filtered, sample)
		}
		resp.Samples = filtered
	}

	if limit := parseIntQuery(r, "limit"); limit > 0 && len(resp.Samples) > limit {
		resp.Samples = resp.Samples[len(resp.Samples)-limit:]
	}
}

func parseFloatQuery(r *http.Request, key string) float64 {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseIntQuery(r *http.Request, key string) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return 0
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}
