// testutil/server.go
package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/envis10n/go-grapevine/pkg/wire"
)

// Server is a mock Grapevine service for testing clients. It accepts one
// websocket at a time, decodes every frame the client sends onto Inbound,
// and lets the test script replies with Send and SendRaw.
type Server struct {
	T       *testing.T
	Server  *httptest.Server
	URL     string
	Conn    *websocket.Conn
	ConnMu  sync.Mutex
	Inbound chan *wire.Envelope

	activeConn context.CancelFunc
}

// NewServer starts the mock service. It is torn down with t.Cleanup.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{T: t, Inbound: make(chan *wire.Envelope, 16)}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connCtx, connCancel := context.WithCancel(context.Background())
		s.activeConn = connCancel

		wsconn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.T.Logf("Server: Accept error: %v", err)
			connCancel()
			return
		}

		s.ConnMu.Lock()
		s.Conn = wsconn
		s.ConnMu.Unlock()
		s.T.Logf("Server: Client connected")

		go func() {
			defer connCancel()
			for {
				_, data, err := wsconn.Read(connCtx)
				if err != nil {
					return
				}
				env := &wire.Envelope{}
				if err := json.Unmarshal(data, env); err != nil {
					s.T.Logf("Server: Undecodable frame from client: %v", err)
					continue
				}
				select {
				case s.Inbound <- env:
				case <-connCtx.Done():
					return
				}
			}
		}()

		// Hold the handler open until the connection ends.
		<-connCtx.Done()
	}))
	s.URL = "ws" + strings.TrimPrefix(s.Server.URL, "http")

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Send writes env to the connected client.
func (s *Server) Send(env *wire.Envelope) error {
	s.ConnMu.Lock()
	conn := s.Conn
	s.ConnMu.Unlock()
	if conn == nil {
		s.T.Fatalf("Server: no active connection to send to")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, env)
}

// SendRaw writes text verbatim, so tests can put frames on the wire that no
// envelope would produce.
func (s *Server) SendRaw(text string) error {
	s.ConnMu.Lock()
	conn := s.Conn
	s.ConnMu.Unlock()
	if conn == nil {
		s.T.Fatalf("Server: no active connection to send to")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, []byte(text))
}

// Next returns the next frame the client sent, failing the test after timeout.
func (s *Server) Next(timeout time.Duration) *wire.Envelope {
	s.T.Helper()
	select {
	case env := <-s.Inbound:
		return env
	case <-time.After(timeout):
		s.T.Fatalf("Server: no frame from client within %v", timeout)
		return nil
	}
}

// Expect returns the next frame and fails the test unless it carries event.
func (s *Server) Expect(event string) *wire.Envelope {
	s.T.Helper()
	env := s.Next(2 * time.Second)
	if env.Event != event {
		s.T.Fatalf("Server: expected event %q from client, got %q", event, env.Event)
	}
	return env
}

// AcceptAuth consumes the client's authenticate frame, replies success and
// returns the decoded credentials payload.
func (s *Server) AcceptAuth() *wire.AuthenticatePayload {
	s.T.Helper()
	env := s.Expect(wire.EventAuthenticate)
	var p wire.AuthenticatePayload
	if err := env.DecodePayload(&p); err != nil {
		s.T.Fatalf("Server: decoding authenticate payload: %v", err)
	}
	reply, err := wire.NewEnvelope(wire.EventAuthenticate, "", wire.AuthenticatedPayload{
		Unicode: "✓",
		Version: wire.ProtocolVersion,
	})
	if err != nil {
		s.T.Fatalf("Server: building authenticate reply: %v", err)
	}
	reply.Status = wire.StatusSuccess
	if err := s.Send(reply); err != nil {
		s.T.Fatalf("Server: sending authenticate reply: %v", err)
	}
	return &p
}

// RejectAuth consumes the client's authenticate frame and replies failure
// with detail as the error text.
func (s *Server) RejectAuth(detail string) {
	s.T.Helper()
	s.Expect(wire.EventAuthenticate)
	reply := &wire.Envelope{
		Event:  wire.EventAuthenticate,
		Status: wire.StatusFailure,
		Error:  json.RawMessage(strconv.Quote(detail)),
	}
	if err := s.Send(reply); err != nil {
		s.T.Fatalf("Server: sending authenticate rejection: %v", err)
	}
}

// CloseCurrentConnection drops the current websocket, as if the service went
// away mid-session.
func (s *Server) CloseCurrentConnection() {
	s.ConnMu.Lock()
	defer s.ConnMu.Unlock()

	if s.Conn != nil {
		s.Conn.Close(websocket.StatusGoingAway, "test closing connection")
		s.Conn = nil
	}
	if s.activeConn != nil {
		s.activeConn()
		s.activeConn = nil
	}
}

// Close closes the mock service.
func (s *Server) Close() {
	s.CloseCurrentConnection()
	if s.Server != nil {
		s.Server.Close()
	}
}
