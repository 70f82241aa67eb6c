package envelope

import (
	"testing"

	"github.com/gridspeak/node/pkg/bus"
	"github.com/gridspeak/node/pkg/chatmodel"
)

func TestDecodePriorityOrder(t *testing.T) {
	// carries both channel_list and voice_signal keys; voice_signal must win
	raw := []byte(`{"channel_list":["general","random"],"voice_signal":{"from":"peerA","type":"offer","data":"sdp"}}`)

	env := Decode(raw)
	if env.Kind != KindVoiceSignal {
		t.Fatalf("Kind = %v, want KindVoiceSignal", env.Kind)
	}
	if env.Voice.From != "peerA" || env.Voice.Kind != "offer" {
		t.Fatalf("Voice = %+v, unexpected", env.Voice)
	}
}

func TestDecodeChannelListBeatsChannelRemoved(t *testing.T) {
	raw := []byte(`{"channel_list":["general"],"channel_removed":"random"}`)

	env := Decode(raw)
	if env.Kind != KindChannelList {
		t.Fatalf("Kind = %v, want KindChannelList", env.Kind)
	}
}

func TestDecodeChannelRemoved(t *testing.T) {
	raw, err := EncodeChannelRemoved("random")
	if err != nil {
		t.Fatalf("EncodeChannelRemoved: %v", err)
	}

	env := Decode(raw)
	if env.Kind != KindChannelRemoved {
		t.Fatalf("Kind = %v, want KindChannelRemoved", env.Kind)
	}
	if env.ChannelRemoved != "random" {
		t.Fatalf("ChannelRemoved = %q, want %q", env.ChannelRemoved, "random")
	}
}

func TestDecodeChatMessageRoundTrip(t *testing.T) {
	msg := chatmodel.New("nick", "hello mesh")
	raw, err := EncodeChatMessage("general", msg)
	if err != nil {
		t.Fatalf("EncodeChatMessage: %v", err)
	}

	env := Decode(raw)
	if env.Kind != KindChatMessage {
		t.Fatalf("Kind = %v, want KindChatMessage", env.Kind)
	}
	if env.ChatChannel != "general" {
		t.Fatalf("ChatChannel = %q, want %q", env.ChatChannel, "general")
	}
	if env.ChatMessage.Body != "hello mesh" || env.ChatMessage.ID != msg.ID {
		t.Fatalf("ChatMessage = %+v, unexpected", env.ChatMessage)
	}
}

func TestDecodeUnknownShapeIsDropped(t *testing.T) {
	env := Decode([]byte(`{"unrelated":"value"}`))
	if env.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", env.Kind)
	}
}

func TestDecodeMalformedJSONIsDropped(t *testing.T) {
	env := Decode([]byte(`not json`))
	if env.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", env.Kind)
	}
}

func TestEncodeVoiceSignalRoundTrip(t *testing.T) {
	sig := bus.VoiceSignal{From: "peerB", To: "peerA", Kind: "answer", Data: "sdp-answer"}
	raw, err := EncodeVoiceSignal(sig)
	if err != nil {
		t.Fatalf("EncodeVoiceSignal: %v", err)
	}

	env := Decode(raw)
	if env.Kind != KindVoiceSignal {
		t.Fatalf("Kind = %v, want KindVoiceSignal", env.Kind)
	}
	if env.Voice != sig {
		t.Fatalf("Voice = %+v, want %+v", env.Voice, sig)
	}
}
