// Package bus is the command/event bridge: the two bounded
// producer/consumer queues by which the API collaborator submits work
// into the mesh engine, and the VoiceSignal payload they carry.
package bus

import (
	"context"
	"errors"

	"github.com/gridspeak/node/pkg/chatmodel"
)

// DefaultCommandQueueSize is the command queue capacity.
const DefaultCommandQueueSize = 32

// DefaultVoiceQueueSize is the voice queue capacity.
const DefaultVoiceQueueSize = 64

// CommandKind distinguishes the three control-command variants.
type CommandKind string

const (
	CommandSendMessage            CommandKind = "send_message"
	CommandBroadcastChannelList   CommandKind = "broadcast_channel_list"
	CommandBroadcastChannelRemove CommandKind = "broadcast_channel_removed"
)

// Command is one unit of work submitted by the API collaborator and
// consumed by the mesh engine's main loop.
type Command struct {
	Kind    CommandKind
	Channel string                 // SendMessage, BroadcastChannelRemoved
	Message *chatmodel.ChatMessage // SendMessage only
}

// VoiceSignal is an opaque WebRTC-style rendezvous payload the mesh
// relays but never interprets.
type VoiceSignal struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
	Kind string `json:"type"` // "offer" | "answer" | "ice"
	Data string `json:"data"`
}

// ErrQueueClosed is returned by SubmitCommand/SubmitVoice once the
// bridge has been closed.
var ErrQueueClosed = errors.New("bus: queue closed")

// Bridge owns the bounded command and voice channels connecting the API
// collaborator to the mesh engine.
type Bridge struct {
	commands chan Command
	voice    chan VoiceSignal
	closed   chan struct{}
}

// New constructs a Bridge with the given queue capacities; callers should
// use at least DefaultCommandQueueSize / DefaultVoiceQueueSize.
func New(commandCap, voiceCap int) *Bridge {
	return &Bridge{
		commands: make(chan Command, commandCap),
		voice:    make(chan VoiceSignal, voiceCap),
		closed:   make(chan struct{}),
	}
}

// SubmitCommand enqueues a command, blocking cooperatively until space
// is available, the context is cancelled, or the bridge is closed.
func (b *Bridge) SubmitCommand(ctx context.Context, cmd Command) error {
	select {
	case <-b.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case b.commands <- cmd:
		return nil
	case <-b.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitVoice enqueues a voice signal with the same backpressure contract.
func (b *Bridge) SubmitVoice(ctx context.Context, sig VoiceSignal) error {
	select {
	case <-b.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case b.voice <- sig:
		return nil
	case <-b.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Commands returns the channel the mesh engine's select loop drains.
func (b *Bridge) Commands() <-chan Command {
	return b.commands
}

// Voice returns the channel the mesh engine's select loop drains.
func (b *Bridge) Voice() <-chan VoiceSignal {
	return b.voice
}

// Close signals that no further commands or voice signals will be
// accepted; pending items already queued are still delivered.
func (b *Bridge) Close() {
	close(b.closed)
}
