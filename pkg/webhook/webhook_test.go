package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lcdc/cutlog/pkg/config"
	"github.com/lcdc/cutlog/pkg/ingest"
	"github.com/lcdc/cutlog/pkg/logger"
	"github.com/lcdc/cutlog/pkg/output"
)

func newTestReport(failed bool) *output.Report {
	started := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	r := &ingest.Report{
		RunID:      "run-1",
		InputDir:   "/srv/cutlog/in",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Files: []*ingest.FileResult{
			{File: "a.txt", Outcome: ingest.OutcomeCommitted, Lines: 4, Records: 3, Skipped: 1},
			{File: "old.txt", Outcome: ingest.OutcomeSkippedArchived},
		},
	}
	if failed {
		r.Files = append(r.Files, &ingest.FileResult{File: "b.txt", Outcome: ingest.OutcomeArchiveFailed, Error: "device busy"})
	}
	return output.NewIngestReport(r, "cutlog.yaml")
}

// capture records the last request a test server received.
type capture struct {
	mu      sync.Mutex
	header  http.Header
	payload map[string]any
	hits    map[string]int
}

func (c *capture) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.hits == nil {
			c.hits = map[string]int{}
		}
		c.hits[r.URL.Path]++
		c.header = r.Header.Clone()
		c.payload = nil
		_ = json.Unmarshal(body, &c.payload)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}

func TestNewPayload(t *testing.T) {
	p := NewPayload(newTestReport(false))
	if p.Event != EventRunCompleted || p.RunID != "run-1" || p.ConfigFile != "cutlog.yaml" {
		t.Errorf("payload header fields = %+v", p)
	}
	if p.Outcomes["committed"] != 1 || p.Outcomes["skipped_archived"] != 1 || len(p.Outcomes) != 2 {
		t.Errorf("Outcomes = %v", p.Outcomes)
	}
	if p.Records != 3 || p.LinesRejected != 1 || p.DurationMS != 1500 {
		t.Errorf("records/rejected/duration = %d/%d/%d", p.Records, p.LinesRejected, p.DurationMS)
	}
	if len(p.Failures) != 0 {
		t.Errorf("Failures = %+v", p.Failures)
	}

	p = NewPayload(newTestReport(true))
	if p.Event != EventRunFailed {
		t.Errorf("Event = %s, want %s", p.Event, EventRunFailed)
	}
	if len(p.Failures) != 1 || p.Failures[0] != (FailedFile{File: "b.txt", Outcome: "archive_failed", Error: "device busy"}) {
		t.Errorf("Failures = %+v", p.Failures)
	}
}

func TestNewPayload_AbortedRun(t *testing.T) {
	report := newTestReport(false)
	report.Ingest.Aborted = true
	report.Ingest.Error = "database is locked"

	p := NewPayload(report)
	if p.Event != EventRunFailed || !p.Aborted || p.Error != "database is locked" {
		t.Errorf("payload = %+v", p)
	}
}

func TestNewPayload_NoIngestSection(t *testing.T) {
	p := NewPayload(&output.Report{Metadata: output.Metadata{ConfigFile: "cutlog.yaml"}})
	if p.RunID != "" || p.Outcomes == nil || p.Event != EventRunCompleted {
		t.Errorf("payload = %+v", p)
	}
}

func TestClient_Send(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler(http.StatusOK))
	defer server.Close()

	resp := NewClient().Send(context.Background(), NewPayload(newTestReport(true)), SendOptions{
		URL:   server.URL,
		Token: "secret-token-123",
	})
	if !resp.Success() {
		t.Fatalf("Send() error = %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"ok":true}` {
		t.Errorf("response = %d %q", resp.StatusCode, resp.Body)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name, want := range map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer secret-token-123",
		HeaderRunID:     "run-1",
		HeaderEvent:     EventRunFailed,
	} {
		if got := c.header.Get(name); got != want {
			t.Errorf("header %s = %q, want %q", name, got, want)
		}
	}

	if c.payload["run_id"] != "run-1" || c.payload["records_committed"] != float64(3) {
		t.Errorf("payload = %v", c.payload)
	}
	outcomes, _ := c.payload["outcomes"].(map[string]any)
	if outcomes["archive_failed"] != float64(1) {
		t.Errorf("outcomes = %v", outcomes)
	}
	// Per-file detail and records stay out of the body.
	if _, ok := c.payload["files"]; ok {
		t.Error("payload carries the full file list")
	}
}

func TestClient_Send_NoToken(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(c.handler(http.StatusNoContent))
	defer server.Close()

	resp := NewClient().Send(context.Background(), NewPayload(newTestReport(false)), SendOptions{URL: server.URL})
	if !resp.Success() {
		t.Fatalf("Send() error = %v", resp.Error)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if got := c.header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want none", got)
	}
}

func TestClient_Send_Failures(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slow.Close()
	broken := httptest.NewServer((&capture{}).handler(http.StatusInternalServerError))
	defer broken.Close()

	tests := []struct {
		name       string
		opts       SendOptions
		wantStatus int
		wantErr    string
	}{
		{"server error", SendOptions{URL: broken.URL}, http.StatusInternalServerError, "status 500"},
		{"timeout", SendOptions{URL: slow.URL, Timeout: 50 * time.Millisecond}, 0, "posting to"},
		{"invalid url", SendOptions{URL: "://invalid-url"}, 0, "building request"},
		{"connection refused", SendOptions{URL: "http://127.0.0.1:59999", Timeout: 100 * time.Millisecond}, 0, "posting to"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewClient().Send(context.Background(), NewPayload(newTestReport(false)), tt.opts)
			if resp.Success() {
				t.Fatal("Send() succeeded, want failure")
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if resp.Error == nil || !strings.Contains(resp.Error.Error(), tt.wantErr) {
				t.Errorf("Error = %v, want it to mention %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want bool
	}{
		{"200", Response{StatusCode: 200}, true},
		{"204", Response{StatusCode: 204}, true},
		{"302", Response{StatusCode: 302}, false},
		{"502", Response{StatusCode: 502}, false},
		{"transport error", Response{StatusCode: 200, Error: io.EOF}, false},
	}
	for _, tt := range tests {
		if got := tt.resp.Success(); got != tt.want {
			t.Errorf("%s: Success() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestShouldFire(t *testing.T) {
	tests := []struct {
		trigger     config.WebhookTrigger
		hasFailures bool
		want        bool
	}{
		{config.WebhookTriggerAlways, false, true},
		{config.WebhookTriggerAlways, true, true},
		{config.WebhookTriggerNever, true, false},
		{config.WebhookTriggerOnFailures, false, false},
		{config.WebhookTriggerOnFailures, true, true},
		{"", true, true},
	}
	for _, tt := range tests {
		if got := ShouldFire(tt.trigger, tt.hasFailures); got != tt.want {
			t.Errorf("ShouldFire(%q, %v) = %v, want %v", tt.trigger, tt.hasFailures, got, tt.want)
		}
	}
}

func TestNotifier_Notify(t *testing.T) {
	c := &capture{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusNoContent
		if r.URL.Path == "/broken" {
			status = http.StatusBadGateway
		}
		c.handler(status)(w, r)
	}))
	defer server.Close()

	n := NewNotifier([]config.WebhookConfig{
		{Name: "always", URL: server.URL + "/always", Trigger: config.WebhookTriggerAlways},
		{Name: "failures", URL: server.URL + "/failures", Trigger: config.WebhookTriggerOnFailures, Token: "t"},
		{Name: "never", URL: server.URL + "/never", Trigger: config.WebhookTriggerNever},
		{URL: server.URL + "/broken", Trigger: config.WebhookTriggerAlways},
	}, logger.Nop())

	deliveries := n.Notify(context.Background(), newTestReport(false))
	if len(deliveries) != 2 {
		t.Fatalf("clean run: %d deliveries, want 2", len(deliveries))
	}
	if deliveries[0].Name != "always" || !deliveries[0].Response.Success() {
		t.Errorf("first delivery = %+v", deliveries[0])
	}
	if deliveries[1].Name != server.URL+"/broken" || deliveries[1].Response.Success() {
		t.Errorf("unnamed webhook should be named by URL and fail: %+v", deliveries[1])
	}

	deliveries = n.Notify(context.Background(), newTestReport(true))
	if len(deliveries) != 3 || deliveries[1].Name != "failures" {
		t.Fatalf("failed run: deliveries = %+v", deliveries)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hits["/always"] != 2 || c.hits["/failures"] != 1 || c.hits["/never"] != 0 {
		t.Errorf("hits = %v", c.hits)
	}
	// Every webhook of one run sees the same run id and event.
	if c.header.Get(HeaderRunID) != "run-1" || c.header.Get(HeaderEvent) != EventRunFailed {
		t.Errorf("last headers = %v", c.header)
	}
}
