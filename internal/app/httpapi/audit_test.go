package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuditLogRingBuffer(t *testing.T) {
	log := newAuditLog(3, nil)
	for i := 0; i < 5; i++ {
		log.add(auditEntry{Time: time.Now(), Path: "/calculations", Status: 200 + i})
	}

	entries := log.list()
	if len(entries) != 3 {
		t.Fatalf("expected ring of 3, got %d", len(entries))
	}
	if entries[0].Status != 202 || entries[2].Status != 204 {
		t.Fatalf("expected oldest entries evicted, got %+v", entries)
	}
}

func TestWrapWithAuditFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	h := newTestHandler(t)
	wrapped := WrapWithAudit(h, path)

	token := registerAndLogin(t, wrapped, "alice", "alice@example.com")

	req := httptest.NewRequest(http.MethodGet, "/calculations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse through audit wrapper: expected 200, got %d", rec.Code)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected at least 3 audit lines (register, login, browse), got %d", len(lines))
	}

	var last auditEntry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode audit line: %v", err)
	}
	if last.Path != "/calculations" || last.Status != http.StatusOK {
		t.Fatalf("unexpected final entry: %+v", last)
	}
	if last.Principal != "alice" {
		t.Fatalf("expected authenticated entry to name the caller, got %q", last.Principal)
	}
}
