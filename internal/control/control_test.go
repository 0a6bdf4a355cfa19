// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gildo/accentd/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewDefaultLogger(logger.ErrorLevel)
}

// sinkRecorder captures popup feedback messages.
type sinkRecorder struct {
	mu    sync.Mutex
	kinds []string
}

func (s *sinkRecorder) record(kind string, _ json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func (s *sinkRecorder) got() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.kinds...)
}

func startServer(t *testing.T, sink PushSink) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accentd.sock")
	srv := NewServer(path, sink, testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("server start failed: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, path
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	line, err := Encode(KindPopupShow, PopupShow{
		Base:      "e",
		Variants:  []string{"è", "é"},
		FontSize:  24,
		TimeoutMs: 5000,
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasSuffix(string(line), "\n") {
		t.Error("encoded line missing newline terminator")
	}

	kind, raw, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if kind != KindPopupShow {
		t.Errorf("kind = %q, want %q", kind, KindPopupShow)
	}
	var show PopupShow
	if err := json.Unmarshal(raw, &show); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}
	if show.Base != "e" || len(show.Variants) != 2 {
		t.Errorf("payload = %+v", show)
	}
}

func TestEncodeEmptyPayload(t *testing.T) {
	line, err := Encode(KindPopupHide, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if want := "{\"PopupHide\":{}}\n"; string(line) != want {
		t.Errorf("line = %q, want %q", line, want)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"not json", "hello\n"},
		{"two kinds", `{"A":{},"B":{}}` + "\n"},
		{"empty object", "{}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode([]byte(tt.line)); err == nil {
				t.Errorf("Decode(%q) succeeded, want error", tt.line)
			}
		})
	}
}

func TestServerHandlesCommand(t *testing.T) {
	srv, path := startServer(t, nil)
	srv.Register(KindGetStatus, func(json.RawMessage) (string, any) {
		return KindStatus, Status{Enabled: true, ActiveLocale: "it", ThresholdMs: 300}
	})

	kind, raw, err := Request(path, KindGetStatus, nil, time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if kind != KindStatus {
		t.Fatalf("reply kind = %q, want %q", kind, KindStatus)
	}
	var status Status
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("status unmarshal failed: %v", err)
	}
	if !status.Enabled || status.ActiveLocale != "it" {
		t.Errorf("status = %+v", status)
	}
}

func TestServerUnknownCommand(t *testing.T) {
	_, path := startServer(t, nil)

	kind, raw, err := Request(path, "Bogus", nil, time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if kind != KindError {
		t.Fatalf("reply kind = %q, want %q", kind, KindError)
	}
	var e Error
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatalf("error unmarshal failed: %v", err)
	}
	if e.Kind != ErrUnknown {
		t.Errorf("error kind = %q, want %q", e.Kind, ErrUnknown)
	}
}

func TestServerParseError(t *testing.T) {
	_, path := startServer(t, nil)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	if _, err := conn.Write([]byte("this is not json\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line, err := reader.ReadBytes('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	kind, raw, err := Decode(line)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if kind != KindError {
		t.Fatalf("reply kind = %q, want %q", kind, KindError)
	}
	var e Error
	_ = json.Unmarshal(raw, &e)
	if e.Kind != ErrParse {
		t.Errorf("error kind = %q, want %q", e.Kind, ErrParse)
	}

	// The connection stays open after a parse error.
	if _, err := conn.Write([]byte("still broken\n")); err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if _, err := reader.ReadBytes('\n'); err != nil {
		t.Fatalf("second read failed: %v", err)
	}
}

func TestServerRoutesPopupFeedback(t *testing.T) {
	sink := &sinkRecorder{}
	_, path := startServer(t, sink.record)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	for _, msg := range []string{
		`{"PopupAck":{}}`,
		`{"Selection":{"index":2}}`,
		`{"Dismissed":{}}`,
	} {
		if _, err := conn.Write([]byte(msg + "\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.got()) == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	want := []string{KindPopupAck, KindSelection, KindDismissed}
	got := sink.got()
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("sink kinds = %v, want %v", got, want)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	srv, path := startServer(t, nil)

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	// Wait for the server to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Broadcast(KindPopupHide, nil); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	kind, _, err := Decode(line)
	if err != nil || kind != KindPopupHide {
		t.Errorf("got kind %q (err %v), want %q", kind, err, KindPopupHide)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	srv, _ := startServer(t, nil)
	if err := srv.Broadcast(KindPopupShow, PopupShow{Base: "e"}); err == nil {
		t.Error("broadcast with no clients succeeded, want error")
	}
}

func TestRequestUnreachable(t *testing.T) {
	_, _, err := Request(filepath.Join(t.TempDir(), "missing.sock"), KindGetStatus, nil, 200*time.Millisecond)
	if err == nil {
		t.Fatal("Request to missing socket succeeded")
	}
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) {
		t.Errorf("error %v is not UnreachableError", err)
	}
}
