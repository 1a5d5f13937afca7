// transport/transport_test.go
package transport_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/envis10n/go-grapevine/pkg/testutil"
	"github.com/envis10n/go-grapevine/pkg/transport"
	"github.com/envis10n/go-grapevine/pkg/wire"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func dialTestServer(t *testing.T, srv *testutil.Server) *transport.Socket {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sock, err := transport.Dial(ctx, srv.URL, transport.Options{Logger: testLogger})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() {
		sock.Close(websocket.StatusNormalClosure, "test finished")
	})
	return sock
}

func recvFrame(t *testing.T, frames <-chan transport.Frame) transport.Frame {
	t.Helper()
	select {
	case f, ok := <-frames:
		if !ok {
			t.Fatal("Frame stream closed unexpectedly")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("No frame within 2s")
		return transport.Frame{}
	}
}

func TestSendStampsTimestamp(t *testing.T) {
	srv := testutil.NewServer(t)
	sock := dialTestServer(t, srv)

	env, err := wire.NewEnvelope(wire.EventPlayersSignIn, "", wire.PlayerPayload{Name: "eric"})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if env.Ts != 0 {
		t.Fatalf("Fresh envelope should not carry a timestamp, got %d", env.Ts)
	}

	before := time.Now().UnixMilli()
	if err := sock.Send(context.Background(), env); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	got := srv.Expect(wire.EventPlayersSignIn)
	if got.Ts < before {
		t.Errorf("Expected timestamp stamped at write, got %d (sent at %d)", got.Ts, before)
	}
	var p wire.PlayerPayload
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("Decoding payload failed: %v", err)
	}
	if p.Name != "eric" {
		t.Errorf("Expected player name %q, got %q", "eric", p.Name)
	}
}

func TestFramesDeliverEnvelopes(t *testing.T) {
	srv := testutil.NewServer(t)
	sock := dialTestServer(t, srv)

	env, err := wire.NewEnvelope(wire.EventTellsReceive, "", wire.TellReceivePayload{
		FromGame: "othergame",
		FromName: "alice",
		Message:  "hi there",
	})
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := srv.Send(env); err != nil {
		t.Fatalf("Server send failed: %v", err)
	}

	f := recvFrame(t, sock.Frames())
	if f.Err != nil {
		t.Fatalf("Expected a parsed frame, got error: %v", f.Err)
	}
	if f.Env.Event != wire.EventTellsReceive {
		t.Errorf("Expected event %q, got %q", wire.EventTellsReceive, f.Env.Event)
	}
}

func TestMalformedFrameDoesNotCloseStream(t *testing.T) {
	srv := testutil.NewServer(t)
	sock := dialTestServer(t, srv)

	if err := srv.SendRaw(`{"event": "restart",`); err != nil {
		t.Fatalf("SendRaw failed: %v", err)
	}

	f := recvFrame(t, sock.Frames())
	if f.Err == nil {
		t.Fatalf("Expected an error frame for malformed JSON, got %+v", f.Env)
	}
	if f.Env != nil {
		t.Errorf("Error frame should not carry an envelope, got %+v", f.Env)
	}

	// The connection survives; the next valid frame still arrives.
	env, err := wire.NewEnvelope(wire.EventRestart, "", nil)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	if err := srv.Send(env); err != nil {
		t.Fatalf("Server send failed: %v", err)
	}
	f = recvFrame(t, sock.Frames())
	if f.Err != nil {
		t.Fatalf("Expected a parsed frame after the malformed one, got error: %v", f.Err)
	}
	if f.Env.Event != wire.EventRestart {
		t.Errorf("Expected event %q, got %q", wire.EventRestart, f.Env.Event)
	}
}

func TestDialFailure(t *testing.T) {
	// A plain HTTP endpoint that refuses the upgrade.
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer plain.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(plain.URL, "http")
	if _, err := transport.Dial(ctx, wsURL, transport.Options{Logger: testLogger}); err == nil {
		t.Fatal("Expected dial to a non-websocket endpoint to fail")
	}
}

func TestCloseEndsFrameStream(t *testing.T) {
	srv := testutil.NewServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sock, err := transport.Dial(ctx, srv.URL, transport.Options{Logger: testLogger})
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	if err := sock.Close(websocket.StatusNormalClosure, "done"); err != nil {
		t.Logf("Close returned: %v", err)
	}

	select {
	case _, ok := <-sock.Frames():
		if ok {
			t.Error("Expected frame stream to end after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Frame stream did not close after Close")
	}

	env, _ := wire.NewEnvelope(wire.EventPlayersSignIn, "", wire.PlayerPayload{Name: "eric"})
	if err := sock.Send(context.Background(), env); err == nil {
		t.Error("Expected Send after Close to fail")
	}
	if sock.TrySend(env) {
		t.Error("Expected TrySend after Close to report false")
	}
}

func TestServerCloseEndsFrameStream(t *testing.T) {
	srv := testutil.NewServer(t)
	sock := dialTestServer(t, srv)

	srv.CloseCurrentConnection()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sock.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Frame stream did not close after the server dropped the connection")
		}
	}
}
