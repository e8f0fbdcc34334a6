package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

const auditActorKey contextKey = "auditActor"

// auditActor is a mutable slot shared between the audit wrapper and the auth
// middleware across the context boundary.
type auditActor struct {
	mu       sync.Mutex
	username string
}

func (a *auditActor) set(username string) {
	a.mu.Lock()
	a.username = username
	a.mu.Unlock()
}

func (a *auditActor) get() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.username
}

type auditEntry struct {
	Time       time.Time `json:"time"`
	Principal  string    `json:"principal,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
	sink    auditSink
}

type auditSink interface {
	Write(entry auditEntry) error
}

func newAuditLog(max int, sink auditSink) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max, sink: sink}
}

func (l *auditLog) add(entry auditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
	if l.sink != nil {
		// Best-effort persistence; ignore errors to avoid impacting request flow.
		_ = l.sink.Write(entry)
	}
}

func (l *auditLog) list() []auditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]auditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// WrapWithAudit records one entry per request after the handler finishes.
func WrapWithAudit(next http.Handler, sinkPath string) http.Handler {
	var sink auditSink
	if fs, err := newFileAuditSink(sinkPath); err == nil && fs != nil {
		sink = fs
	}
	log := newAuditLog(0, sink)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}

		// The auth middleware runs deeper in the chain; it fills this slot
		// so the entry can name the caller.
		slot := &auditActor{}
		r = r.WithContext(context.WithValue(r.Context(), auditActorKey, slot))

		next.ServeHTTP(rec, r)

		log.add(auditEntry{
			Time:       time.Now().UTC(),
			Principal:  slot.get(),
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})
	})
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// fileAuditSink appends audit entries as JSONL.
type fileAuditSink struct {
	mu   sync.Mutex
	file *os.File
}

func newFileAuditSink(path string) (*fileAuditSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	return &fileAuditSink{file: f}, nil
}

func (s *fileAuditSink) Write(entry auditEntry) error {
	if s == nil || s.file == nil {
		return nil
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.file.Write(append(b, '\n'))
	return err
}
