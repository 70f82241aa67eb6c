package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/channels"
	"github.com/gridspeak/node/pkg/chatmodel"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.directory.List())
}

type createChannelRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.directory.AddLocal(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	if err := s.bridge.SubmitCommand(ctx, bus.Command{Kind: bus.CommandBroadcastChannelList}); err != nil {
		writeError(w, http.StatusInternalServerError, "channel created but broadcast failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.directory.RemoveLocal(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	if err := s.bridge.SubmitCommand(ctx, bus.Command{Kind: bus.CommandBroadcastChannelRemove, Channel: name}); err != nil {
		writeError(w, http.StatusInternalServerError, "channel deleted but broadcast failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = channels.RootChannel
	}

	store := s.directory.GetStore(channel)
	if store == nil {
		writeJSON(w, http.StatusOK, []chatmodel.ChatMessage{})
		return
	}
	writeJSON(w, http.StatusOK, store.Messages())
}

type attachmentPayload struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	DataBase64  string `json:"data_base64"`
}

type publishRequest struct {
	Channel     string              `json:"channel"`
	Body        string              `json:"body"`
	Author      string              `json:"author"`
	Attachments []attachmentPayload `json:"attachments"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := strings.ToLower(strings.TrimSpace(req.Channel))
	if channel == "" {
		writeError(w, http.StatusBadRequest, "channel is required")
		return
	}

	known := false
	for _, name := range s.directory.List() {
		if name == channel {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusNotFound, "unknown channel")
		return
	}

	if strings.TrimSpace(req.Body) == "" && len(req.Attachments) == 0 {
		writeError(w, http.StatusBadRequest, "body or attachments required")
		return
	}

	author := req.Author
	if author == "" {
		author = s.fallbackAuthor
	}

	attachments := make([]chatmodel.Attachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, chatmodel.Attachment{
			ContentType: a.ContentType,
			Filename:    a.Filename,
			DataBase64:  a.DataBase64,
		})
	}
	attachments = chatmodel.CapAttachments(attachments)

	message := chatmodel.NewWithAttachments(author, req.Body, attachments)

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	cmd := bus.Command{Kind: bus.CommandSendMessage, Channel: channel, Message: &message}
	if err := s.bridge.SubmitCommand(ctx, cmd); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to submit message")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type statusResponse struct {
	PeerID       string   `json:"peer_id"`
	Peers        []string `json:"peers"`
	MessageCount int      `json:"message_count"`
	LastMessage  string   `json:"last_message,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.telemetry.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		PeerID:       s.peerID,
		Peers:        snap.Peers,
		MessageCount: s.directory.MessageCount(),
		LastMessage:  snap.LastMessage,
	})
}

func (s *Server) handleVoiceSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.voice.Snapshot())
}

type voiceSignalRequest struct {
	Kind string `json:"type"`
	Data string `json:"data"`
	To   string `json:"to"`
}

func (s *Server) handleVoiceSignalPost(w http.ResponseWriter, r *http.Request) {
	var req voiceSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sig := bus.VoiceSignal{From: s.peerID, To: req.To, Kind: req.Kind, Data: req.Data}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()
	if err := s.bridge.SubmitVoice(ctx, sig); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to submit voice signal")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
