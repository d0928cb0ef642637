package tailnet

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewServer(t *testing.T) {
	s := New(Config{Hostname: "kobo", StateDir: t.TempDir(), AuthKey: "tskey-test", ControlURL: "https://control.invalid", Logger: zerolog.Nop()})
	if s == nil {
		t.Fatalf("expected server")
	}
	if s.srv.AuthKey != "tskey-test" || s.srv.ControlURL != "https://control.invalid" {
		t.Fatalf("expected auth settings passed to tsnet")
	}
}

func TestServerUpCancelable(t *testing.T) {
	s := New(Config{Hostname: "kobo", StateDir: t.TempDir(), Logger: zerolog.Nop()})
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.Up(ctx)
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected Up to return an error for canceled context")
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("Up did not return after context timeout")
	}
}

func TestLogfWritesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	logf(logger)("peer %s up", "gw")
	if got := buf.String(); !strings.Contains(got, "peer gw up") || !strings.Contains(got, `"level":"debug"`) {
		t.Fatalf("unexpected log output %q", got)
	}
}
