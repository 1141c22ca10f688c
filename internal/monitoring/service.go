package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sentinelsec/sentinel-core/internal/infrastructure/config"
	"github.com/sentinelsec/sentinel-core/internal/infrastructure/logging"
)

const (
	// httpTimeout bounds one HTTP delivery attempt.
	httpTimeout = 10 * time.Second

	// tcpResponseWait is how long a raw-TCP delivery waits for the
	// receiver to answer before declaring failure.
	tcpResponseWait = 5 * time.Second

	// maxRetryElapsed bounds the total retry budget for one event.
	// After this the event is dropped and logged; alarm state is long
	// since committed and must never wait on us.
	maxRetryElapsed = 30 * time.Second

	userAgent = "SentinelCore/1.0"
)

// Service relays alarm events to a professional monitoring receiver.
//
// Sends are fire-and-forget from the state machine's point of view: the
// coordinator calls Send on a detached goroutine, delivery failures are
// logged and never affect alarm state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Service struct {
	cfg    config.MonitoringConfig
	logger *logging.Logger
	client *http.Client

	// now is replaceable in tests.
	now func() time.Time

	mu  sync.Mutex
	seq int // SIA message sequence, wraps 9999 -> 1

	// recorder, when set, observes delivery outcomes for telemetry.
	recorder func(protocol, eventType string, delivered bool, latency time.Duration)

	hbStop chan struct{}
	hbWG   sync.WaitGroup
}

// SetDeliveryRecorder installs a callback observing every delivery
// outcome. Set during startup, before the first Send.
func (s *Service) SetDeliveryRecorder(fn func(protocol, eventType string, delivered bool, latency time.Duration)) {
	s.recorder = fn
}

// NewService creates a monitoring Service from configuration.
func NewService(cfg config.MonitoringConfig, logger *logging.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger.With("component", "monitoring"),
		client: &http.Client{Timeout: httpTimeout},
		now:    time.Now,
	}
}

// Enabled reports whether the relay is configured to send anything.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Send encodes an event in the configured protocol and delivers it,
// retrying transient failures on a bounded exponential backoff. Returns
// true when the receiver acknowledged the event.
func (s *Service) Send(eventType, zone, user string, details map[string]any) bool {
	if !s.cfg.Enabled {
		return false
	}

	deliver, err := s.prepare(eventType, zone, user, details)
	if err != nil {
		s.logger.Error("failed to encode monitoring event",
			"event_type", eventType,
			"error", err,
		)
		return false
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed

	started := time.Now()
	err = backoff.Retry(deliver, bo)
	if s.recorder != nil {
		s.recorder(s.cfg.Protocol, eventType, err == nil, time.Since(started))
	}
	if err != nil {
		s.logger.Error("monitoring delivery failed, giving up",
			"event_type", eventType,
			"zone", zone,
			"error", err,
		)
		return false
	}

	s.logger.Info("monitoring event delivered",
		"event_type", eventType,
		"protocol", s.cfg.Protocol,
	)
	return true
}

// TestConnection sends a test event so an installer can confirm the
// receiver path end to end.
func (s *Service) TestConnection() bool {
	return s.Send(EventTest, "000", "test", map[string]any{
		"test":      true,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

// StartHeartbeat begins the periodic supervision signal. No-op when the
// heartbeat is disabled in configuration.
func (s *Service) StartHeartbeat() {
	if !s.cfg.Enabled || !s.cfg.Heartbeat.Enabled || s.hbStop != nil {
		return
	}

	interval := time.Duration(s.cfg.Heartbeat.Interval) * time.Second
	if interval <= 0 {
		return
	}

	s.hbStop = make(chan struct{})
	s.hbWG.Add(1)
	go func() {
		defer s.hbWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Send(EventTest, "", "", map[string]any{"heartbeat": true})
			case <-s.hbStop:
				return
			}
		}
	}()
	s.logger.Info("monitoring heartbeat started", "interval", interval.String())
}

// Close stops the heartbeat loop.
func (s *Service) Close() {
	if s.hbStop != nil {
		close(s.hbStop)
		s.hbWG.Wait()
		s.hbStop = nil
	}
}

// prepare builds the delivery closure for one event.
func (s *Service) prepare(eventType, zone, user string, details map[string]any) (func() error, error) {
	account := padAccount(s.cfg.AccountID)

	switch s.cfg.Protocol {
	case "contact_id":
		msg := EncodeContactID(s.cfg.AccountID, eventType, zone)
		if s.httpEndpoint() {
			body, err := json.Marshal(map[string]any{
				"protocol":   "contact_id",
				"message":    msg,
				"account":    account,
				"event_type": eventType,
			})
			if err != nil {
				return nil, err
			}
			return func() error { return s.deliverHTTP(body) }, nil
		}
		return func() error { return s.deliverTCP(msg) }, nil

	case "sia":
		msg := EncodeSIA(s.cfg.AccountID, s.nextSeq(), eventType, zone, s.now())
		if s.httpEndpoint() {
			body, err := json.Marshal(map[string]any{
				"protocol": "sia",
				"message":  msg,
				"account":  account,
			})
			if err != nil {
				return nil, err
			}
			return func() error { return s.deliverHTTP(body) }, nil
		}
		return func() error { return s.deliverTCP(msg) }, nil

	case "webhook":
		body, err := EncodeWebhook(s.cfg.AccountID, eventType, zone, user, s.cfg.TestMode, details, s.now())
		if err != nil {
			return nil, err
		}
		return func() error { return s.deliverHTTP(body) }, nil

	default:
		return nil, fmt.Errorf("unknown monitoring protocol: %s", s.cfg.Protocol)
	}
}

func (s *Service) httpEndpoint() bool {
	return strings.HasPrefix(s.cfg.Endpoint, "http")
}

// nextSeq returns the next SIA sequence number, wrapping 9999 -> 1.
func (s *Service) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.seq > 9999 {
		s.seq = 1
	}
	return s.seq
}

// deliverHTTP posts a JSON body to the endpoint. Any 2xx is success.
func (s *Service) deliverHTTP(body []byte) error {
	req, err := http.NewRequest(http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to monitoring endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("monitoring endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// deliverTCP writes the message to the receiver over a raw TCP socket
// and waits up to tcpResponseWait for any acknowledgment bytes.
func (s *Service) deliverTCP(message string) error {
	conn, err := net.DialTimeout("tcp", s.cfg.Endpoint, tcpResponseWait)
	if err != nil {
		return fmt.Errorf("dialing monitoring receiver: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(tcpResponseWait)); err != nil {
		return fmt.Errorf("setting socket deadline: %w", err)
	}

	if _, err := conn.Write([]byte(message)); err != nil {
		return fmt.Errorf("writing to monitoring receiver: %w", err)
	}

	ack := make([]byte, 100)
	if _, err := conn.Read(ack); err != nil {
		return fmt.Errorf("waiting for receiver acknowledgment: %w", err)
	}
	return nil
}
