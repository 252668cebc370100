package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"confio-payclient/internal/dto"
	"confio-payclient/internal/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// SessionChannel the persistent bidirectional channel the payment protocol
// runs over. One logical call/response exchange at a time.
type SessionChannel interface {
	Call(ctx context.Context, messageType string, payload interface{}) (json.RawMessage, error)
	Close() error
}

// SessionClient gorilla/websocket implementation of the session channel.
// Calls are serialized: the protocol never has more than one exchange in
// flight per payment attempt, and responses are correlated by message id.
type SessionClient struct {
	url    string
	token  string
	logger *logrus.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex // serializes dial/call/close
	conn *websocket.Conn
}

// NewSessionClient creates a client for the payment session channel
func NewSessionClient(url, token string, logger *logrus.Logger) *SessionClient {
	return &SessionClient{
		url:    url,
		token:  token,
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// ensureConnected dials the channel if needed. Caller holds s.mu.
func (s *SessionClient) ensureConnected(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		metrics.SessionConnected.Set(0)
		return fmt.Errorf("failed to dial session channel (status %d): %w", status, err)
	}

	conn.SetPongHandler(func(string) error { return nil })
	s.conn = conn
	metrics.SessionConnected.Set(1)
	s.logger.WithField("url", s.url).Info("🔌 [Session] Channel connected")
	return nil
}

// Call sends one envelope and waits for the correlated response. The
// context deadline bounds the whole exchange; expiry surfaces as a timeout
// error the services map onto the protocol taxonomy.
func (s *SessionClient) Call(ctx context.Context, messageType string, payload interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnected(ctx); err != nil {
		metrics.SessionCalls.WithLabelValues(messageType, "dial_error").Inc()
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", messageType, err)
	}

	envelope := dto.Envelope{
		Type:      messageType,
		MessageID: uuid.New().String(),
		Payload:   body,
	}

	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
		s.conn.SetReadDeadline(deadline)
	} else {
		// clear any deadline left over from an earlier call
		s.conn.SetWriteDeadline(time.Time{})
		s.conn.SetReadDeadline(time.Time{})
	}

	if err := s.conn.WriteJSON(&envelope); err != nil {
		s.dropConnection()
		metrics.SessionCalls.WithLabelValues(messageType, "write_error").Inc()
		return nil, fmt.Errorf("failed to send %s: %w", messageType, err)
	}

	s.logger.WithFields(logrus.Fields{
		"type":       messageType,
		"message_id": envelope.MessageID,
	}).Debug("[Session] Request sent")

	for {
		if err := ctx.Err(); err != nil {
			s.dropConnection()
			metrics.SessionCalls.WithLabelValues(messageType, "timeout").Inc()
			return nil, fmt.Errorf("%s call aborted: %w", messageType, err)
		}

		var response dto.Envelope
		if err := s.conn.ReadJSON(&response); err != nil {
			s.dropConnection()
			if os.IsTimeout(err) || ctx.Err() != nil {
				metrics.SessionCalls.WithLabelValues(messageType, "timeout").Inc()
				return nil, fmt.Errorf("%s call timed out: %w", messageType, err)
			}
			metrics.SessionCalls.WithLabelValues(messageType, "read_error").Inc()
			return nil, fmt.Errorf("failed to read %s response: %w", messageType, err)
		}

		switch {
		case response.Type == dto.MessageTypePing:
			// server keepalive, answer and keep waiting
			pong := dto.Envelope{Type: dto.MessageTypePong}
			if err := s.conn.WriteJSON(&pong); err != nil {
				s.dropConnection()
				return nil, fmt.Errorf("failed to answer ping: %w", err)
			}

		case response.MessageID != "" && response.MessageID != envelope.MessageID:
			// stale response from an earlier, abandoned exchange
			s.logger.WithField("message_id", response.MessageID).Debug("[Session] Dropping uncorrelated message")

		case response.Type == dto.MessageTypeError || response.Error != "":
			metrics.SessionCalls.WithLabelValues(messageType, "server_error").Inc()
			return nil, &ServerError{Message: response.Error}

		default:
			metrics.SessionCalls.WithLabelValues(messageType, "ok").Inc()
			return response.Payload, nil
		}
	}
}

// dropConnection discards the connection so the next call re-dials.
// Caller holds s.mu.
func (s *SessionClient) dropConnection() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	metrics.SessionConnected.Set(0)
}

// Close shuts the channel down
func (s *SessionClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	metrics.SessionConnected.Set(0)
	return err
}

// ServerError an error envelope returned by the payment server over the
// session channel
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}
