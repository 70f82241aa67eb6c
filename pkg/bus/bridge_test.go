package bus

import (
	"context"
	"testing"
	"time"
)

func TestSubmitCommandBlocksUntilSpace(t *testing.T) {
	b := New(1, 1)

	if err := b.SubmitCommand(context.Background(), Command{Kind: CommandBroadcastChannelList}); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := b.SubmitCommand(ctx, Command{Kind: CommandBroadcastChannelList}); err == nil {
		t.Fatalf("expected full-queue submit to block until context deadline")
	}

	<-b.Commands()
	if err := b.SubmitCommand(context.Background(), Command{Kind: CommandBroadcastChannelList}); err != nil {
		t.Fatalf("submit after drain: %v", err)
	}
}

func TestSubmitAfterCloseReturnsQueueClosed(t *testing.T) {
	b := New(1, 1)
	b.Close()

	if err := b.SubmitCommand(context.Background(), Command{}); err != ErrQueueClosed {
		t.Fatalf("SubmitCommand after close = %v, want ErrQueueClosed", err)
	}
	if err := b.SubmitVoice(context.Background(), VoiceSignal{}); err != ErrQueueClosed {
		t.Fatalf("SubmitVoice after close = %v, want ErrQueueClosed", err)
	}
}
