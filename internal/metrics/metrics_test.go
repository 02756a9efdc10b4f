package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func expectLine(t *testing.T, body, line string) {
	t.Helper()
	if !strings.Contains(body, line) {
		t.Fatalf("missing %q in:\n%s", line, body)
	}
}

func TestObserverCounters(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))

	m.FrameHandled("main", "chat")
	m.FrameHandled("main", "chat")
	m.FrameRejected("main", "rate_limited")
	m.Published("main", core.PublishResult{SendTo: 3, Dropped: []domain.ParticipantID{"a"}})
	m.SpeakersChanged("main", 2, 1)

	body := scrape(t, m)
	expectLine(t, body, `venue_frames_total{room="main",type="chat"} 2`)
	expectLine(t, body, `venue_frames_rejected_total{code="rate_limited",room="main"} 1`)
	expectLine(t, body, `venue_frames_delivered_total{room="main"} 3`)
	expectLine(t, body, `venue_frames_dropped_total{room="main"} 1`)
	expectLine(t, body, `venue_speakers{room="main"} 2`)
	expectLine(t, body, `venue_speak_requests_pending{room="main"} 1`)
}

func TestGaugesAndSnapshots(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.RoomsActive(4)
	m.Evicted()
	m.SnapshotSaved(nil)
	m.SnapshotSaved(errors.New("disk full"))

	body := scrape(t, m)
	expectLine(t, body, "venue_connections 1")
	expectLine(t, body, "venue_rooms 4")
	expectLine(t, body, "venue_evictions_total 1")
	expectLine(t, body, `venue_snapshots_total{result="error"} 1`)
	expectLine(t, body, `venue_snapshots_total{result="ok"} 1`)
}

func TestRoomRemovedDropsSeries(t *testing.T) {
	m := New(WithRegistry(prometheus.NewRegistry()))
	m.SpeakersChanged("side", 1, 0)
	m.RoomRemoved("side")
	if body := scrape(t, m); strings.Contains(body, `room="side"`) {
		t.Fatalf("series of removed room still exported:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.FrameHandled("main", "chat")
	m.ConnectionOpened()
	m.SnapshotSaved(nil)
	m.RoomRemoved("main")
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}

func TestDefaultRegistryCarriesRuntime(t *testing.T) {
	m := New(WithNamespace("test"))
	m.FrameHandled("main", "ping")

	body := scrape(t, m)
	expectLine(t, body, `test_frames_total{room="main",type="ping"} 1`)
	expectLine(t, body, "go_goroutines")
}
