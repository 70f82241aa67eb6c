// Package envelope implements the tagged gossip wire format: a single
// JSON object whose kind is determined by which top-level key is
// present, checked in a fixed priority order so that a payload carrying
// more than one recognized key still dispatches deterministically.
package envelope

import (
	"encoding/json"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/chatmodel"
)

// Kind identifies which of the four payload shapes an envelope carries.
type Kind int

const (
	// KindUnknown means none of the recognized top-level keys were present;
	// the envelope must be dropped without error.
	KindUnknown Kind = iota
	KindVoiceSignal
	KindChannelList
	KindChannelRemoved
	KindChatMessage
)

// Envelope is the decoded result of Decode: exactly one of the payload
// fields is populated, indicated by Kind.
type Envelope struct {
	Kind Kind

	Voice          bus.VoiceSignal
	ChannelList    []string
	ChannelRemoved string
	ChatChannel    string
	ChatMessage    chatmodel.ChatMessage
}

// wireShape mirrors every possible top-level key so Decode can probe for
// presence with a single Unmarshal before deciding precedence.
type wireShape struct {
	VoiceSignal    *bus.VoiceSignal       `json:"voice_signal,omitempty"`
	ChannelList    []string               `json:"channel_list,omitempty"`
	ChannelRemoved *string                `json:"channel_removed,omitempty"`
	Channel        *string                `json:"channel,omitempty"`
	Message        *chatmodel.ChatMessage `json:"message,omitempty"`
}

// Decode parses raw bytes and dispatches by envelope kind, first match
// wins:
//  1. voice_signal
//  2. channel_list
//  3. channel_removed
//  4. channel + message
//
// A malformed payload or one matching none of the four shapes decodes to
// KindUnknown with no error; callers drop it silently.
func Decode(raw []byte) Envelope {
	var w wireShape
	if err := json.Unmarshal(raw, &w); err != nil {
		return Envelope{Kind: KindUnknown}
	}

	switch {
	case w.VoiceSignal != nil:
		return Envelope{Kind: KindVoiceSignal, Voice: *w.VoiceSignal}
	case w.ChannelList != nil:
		return Envelope{Kind: KindChannelList, ChannelList: w.ChannelList}
	case w.ChannelRemoved != nil:
		return Envelope{Kind: KindChannelRemoved, ChannelRemoved: *w.ChannelRemoved}
	case w.Channel != nil && w.Message != nil:
		return Envelope{Kind: KindChatMessage, ChatChannel: *w.Channel, ChatMessage: *w.Message}
	default:
		return Envelope{Kind: KindUnknown}
	}
}

// EncodeChatMessage builds the wire bytes for a chat envelope.
func EncodeChatMessage(channel string, message chatmodel.ChatMessage) ([]byte, error) {
	return json.Marshal(struct {
		Channel string                `json:"channel"`
		Message chatmodel.ChatMessage `json:"message"`
	}{Channel: channel, Message: message})
}

// EncodeChannelList builds the wire bytes for a channel-list advertisement.
func EncodeChannelList(names []string) ([]byte, error) {
	return json.Marshal(struct {
		ChannelList []string `json:"channel_list"`
	}{ChannelList: names})
}

// EncodeChannelRemoved builds the wire bytes for a channel-removal envelope.
func EncodeChannelRemoved(name string) ([]byte, error) {
	return json.Marshal(struct {
		ChannelRemoved string `json:"channel_removed"`
	}{ChannelRemoved: name})
}

// EncodeVoiceSignal builds the wire bytes for a voice-signal relay.
func EncodeVoiceSignal(sig bus.VoiceSignal) ([]byte, error) {
	return json.Marshal(struct {
		VoiceSignal bus.VoiceSignal `json:"voice_signal"`
	}{VoiceSignal: sig})
}
