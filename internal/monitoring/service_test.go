package monitoring

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/config"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

func newTestService(cfg config.MonitoringConfig) *Service {
	s := NewService(cfg, logging.Default())
	s.now = func() time.Time {
		return time.Date(2026, 8, 15, 14, 30, 5, 0, time.UTC)
	}
	return s
}

func TestServiceDisabledNeverSends(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:  false,
		Protocol: "webhook",
		Endpoint: srv.URL,
	})

	if s.Send(EventTriggered, "", "", nil) {
		t.Error("Send() = true for disabled service")
	}
	if called {
		t.Error("disabled service hit the endpoint")
	}
}

func TestServiceWebhookDelivery(t *testing.T) {
	var gotBody []byte
	var gotAuth, gotContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body) //nolint:errcheck
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "webhook",
		Endpoint:  srv.URL,
		AccountID: "1234",
		APIKey:    "secret-key",
	})

	ok := s.Send(EventTriggered, "front_door", "Alice", map[string]any{"zone_name": "Front Door"})
	if !ok {
		t.Fatal("Send() = false, want true")
	}

	if gotAuth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload["event_type"] != EventTriggered || payload["zone"] != "front_door" {
		t.Errorf("payload = %v", payload)
	}
}

func TestServiceContactIDOverHTTP(t *testing.T) {
	var payload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)          //nolint:errcheck
		_ = json.Unmarshal(body, &payload)     //nolint:errcheck
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "contact_id",
		Endpoint:  srv.URL,
		AccountID: "1234",
	})

	if !s.Send(EventArmAway, "", "Alice", nil) {
		t.Fatal("Send() = false, want true")
	}

	if payload["protocol"] != "contact_id" {
		t.Errorf("protocol = %v", payload["protocol"])
	}
	if payload["message"] != "1234181340100000" {
		t.Errorf("message = %v, want 1234181340100000", payload["message"])
	}
}

func TestServiceTCPDelivery(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)         //nolint:errcheck
		received <- string(buf[:n])
		conn.Write([]byte("ACK")) //nolint:errcheck
	}()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "sia",
		Endpoint:  ln.Addr().String(),
		AccountID: "1234",
	})

	if !s.Send(EventDisarm, "front_door", "Alice", nil) {
		t.Fatal("Send() = false, want true")
	}

	select {
	case msg := <-received:
		want := "\n1234\"0001\"14:30:05\"OP[front_door]"
		if msg != want {
			t.Errorf("TCP message = %q, want %q", msg, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receiver never got the message")
	}
}

func TestServiceRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "webhook",
		Endpoint:  srv.URL,
		AccountID: "1234",
	})

	if !s.Send(EventTest, "", "", nil) {
		t.Fatal("Send() = false after transient failures, want true")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestServiceSIASequenceIncrements(t *testing.T) {
	var messages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck
		var p map[string]any
		_ = json.Unmarshal(body, &p) //nolint:errcheck
		messages = append(messages, p["message"].(string))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "sia",
		Endpoint:  srv.URL,
		AccountID: "1234",
	})

	s.Send(EventArmAway, "", "", nil)
	s.Send(EventDisarm, "", "", nil)

	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0][6:10] != "0001" || messages[1][6:10] != "0002" {
		t.Errorf("sequences = %q, %q", messages[0][6:10], messages[1][6:10])
	}
}

func TestServiceTestConnection(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)      //nolint:errcheck
		_ = json.Unmarshal(body, &payload) //nolint:errcheck
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestService(config.MonitoringConfig{
		Enabled:   true,
		Protocol:  "webhook",
		Endpoint:  srv.URL,
		AccountID: "1234",
	})

	if !s.TestConnection() {
		t.Fatal("TestConnection() = false")
	}
	if payload["event_type"] != EventTest {
		t.Errorf("event_type = %v, want %s", payload["event_type"], EventTest)
	}
}
