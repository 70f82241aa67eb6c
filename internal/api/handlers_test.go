package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/channels"
	"github.com/gridspeak/node/pkg/telemetry"
	"github.com/gridspeak/node/pkg/voicering"
)

func newTestServer(t *testing.T) (*Server, *bus.Bridge) {
	t.Helper()
	dir := t.TempDir()
	directory, err := channels.Open(dir, []string{channels.RootChannel}, nil)
	if err != nil {
		t.Fatalf("channels.Open: %v", err)
	}
	bridge := bus.New(bus.DefaultCommandQueueSize, bus.DefaultVoiceQueueSize)
	s := New("", directory, bridge, telemetry.New(), voicering.New(0), "peer-123", "node")
	return s, bridge
}

func TestHealthReturnsOK(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestPublishUnknownChannelReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(publishRequest{Channel: "nope", Body: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestPublishAcceptedAndRelayedThroughBridge(t *testing.T) {
	s, bridge := newTestServer(t)
	body, _ := json.Marshal(publishRequest{Channel: channels.RootChannel, Body: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.srv.Handler.ServeHTTP(rec, req)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	select {
	case cmd := <-bridge.Commands():
		if cmd.Kind != bus.CommandSendMessage || cmd.Channel != channels.RootChannel {
			t.Fatalf("cmd = %+v, unexpected", cmd)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for command on bridge")
	}
	<-done

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestCreateAndDeleteChannel(t *testing.T) {
	s, bridge := newTestServer(t)
	go func() {
		<-bridge.Commands()
	}()

	createBody, _ := json.Marshal(createChannelRequest{Name: "random"})
	req := httptest.NewRequest(http.MethodPost, "/channels", bytes.NewReader(createBody))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", rec.Code, http.StatusCreated)
	}

	go func() {
		<-bridge.Commands()
	}()
	delReq := httptest.NewRequest(http.MethodDelete, "/channels/random", nil)
	delRec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", delRec.Code, http.StatusNoContent)
	}
}

func TestDeleteRootChannelRejected(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/channels/general", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStatusReportsPeerAndMessageCount(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PeerID != "peer-123" {
		t.Fatalf("PeerID = %q, want %q", resp.PeerID, "peer-123")
	}
	if resp.MessageCount != 0 {
		t.Fatalf("MessageCount = %d, want 0", resp.MessageCount)
	}
}

func TestVoiceSignalPostRelayedThroughBridge(t *testing.T) {
	s, bridge := newTestServer(t)
	body, _ := json.Marshal(voiceSignalRequest{Kind: "offer", Data: "sdp"})
	req := httptest.NewRequest(http.MethodPost, "/voice/signal", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.srv.Handler.ServeHTTP(rec, req)
		close(done)
	}()

	select {
	case sig := <-bridge.Voice():
		if sig.From != "peer-123" || sig.Kind != "offer" {
			t.Fatalf("sig = %+v, unexpected", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for voice signal on bridge")
	}
	<-done
}
