package server

import (
	"sort"
	"sync"
	"time"
)

// LogEntry is one /log record as stored for an app.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	File    string    `json:"file"`
	Line    int       `json:"line"`
	At      time.Time `json:"at"`
}

// EventEntry is one /event record as stored for an app.
type EventEntry struct {
	Category string    `json:"category"`
	Action   string    `json:"action"`
	Label    string    `json:"label"`
	Value    float64   `json:"value"`
	At       time.Time `json:"at"`
}

// AppState is the server's view of one app host.
type AppState struct {
	Host       string         `json:"host"`
	FirstSeen  time.Time      `json:"first_seen"`
	LastSeen   time.Time      `json:"last_seen"`
	Heartbeats uint64         `json:"heartbeats"`
	Events     uint64         `json:"events"`
	Logs       uint64         `json:"logs"`
	Custom     map[string]int `json:"custom,omitempty"`
	LastEvent  *EventEntry    `json:"last_event,omitempty"`
	RecentLogs []LogEntry     `json:"recent_logs,omitempty"`
}

func (a *AppState) clone() AppState {
	out := *a
	if a.Custom != nil {
		out.Custom = make(map[string]int, len(a.Custom))
		for k, v := range a.Custom {
			out.Custom[k] = v
		}
	}
	if a.LastEvent != nil {
		ev := *a.LastEvent
		out.LastEvent = &ev
	}
	out.RecentLogs = append([]LogEntry(nil), a.RecentLogs...)
	return out
}

// Registry tracks app hosts by last activity.
type Registry struct {
	mu        sync.Mutex
	apps      map[string]*AppState
	deadAfter time.Duration
	keepLogs  int
	now       func() time.Time
}

func NewRegistry(deadAfter time.Duration, keepLogs int) *Registry {
	return &Registry{
		apps:      make(map[string]*AppState),
		deadAfter: deadAfter,
		keepLogs:  keepLogs,
		now:       time.Now,
	}
}

// touch returns the entry for host, creating it if needed. Callers hold mu.
func (r *Registry) touch(host string) *AppState {
	now := r.now()
	app, ok := r.apps[host]
	if !ok {
		app = &AppState{Host: host, FirstSeen: now}
		r.apps[host] = app
	}
	app.LastSeen = now
	return app
}

func (r *Registry) Heartbeat(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch(host).Heartbeats++
}

func (r *Registry) Event(host string, ev EventEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app := r.touch(host)
	app.Events++
	ev.At = app.LastSeen
	app.LastEvent = &ev
}

func (r *Registry) Log(host string, entry LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app := r.touch(host)
	app.Logs++
	if r.keepLogs <= 0 {
		return
	}
	entry.At = app.LastSeen
	app.RecentLogs = append(app.RecentLogs, entry)
	if over := len(app.RecentLogs) - r.keepLogs; over > 0 {
		app.RecentLogs = append([]LogEntry(nil), app.RecentLogs[over:]...)
	}
}

func (r *Registry) Custom(host, route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app := r.touch(host)
	if app.Custom == nil {
		app.Custom = make(map[string]int)
	}
	app.Custom[route]++
}

// Seen marks activity without counting a message kind.
func (r *Registry) Seen(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch(host)
}

// Prune drops hosts silent for longer than the liveness window and returns
// them sorted.
func (r *Registry) Prune() []string {
	if r.deadAfter <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.deadAfter)
	var dropped []string
	for host, app := range r.apps {
		if app.LastSeen.Before(cutoff) {
			delete(r.apps, host)
			dropped = append(dropped, host)
		}
	}
	sort.Strings(dropped)
	return dropped
}

func (r *Registry) Get(host string) (AppState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[host]
	if !ok {
		return AppState{}, false
	}
	return app.clone(), true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.apps)
}

// Snapshot returns every app sorted by host.
func (r *Registry) Snapshot() []AppState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AppState, 0, len(r.apps))
	for _, app := range r.apps {
		out = append(out, app.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Host < out[j].Host
	})
	return out
}
