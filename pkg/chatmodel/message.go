// Package chatmodel defines the replicated chat payloads shared over the
// mesh: a ChatMessage with its inline Attachments, and the 512 KiB
// per-message attachment budget enforced at publish time.
package chatmodel

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// MaxAttachmentBytes is the maximum sum of decoded attachment sizes
// permitted in one message at publish time. Ingest accepts any size
// actually received; the cap is only enforced on the local publish path.
const MaxAttachmentBytes = 512 * 1024

// Attachment is a small inline file carried alongside a ChatMessage.
// Data is base64-encoded so the struct round-trips through JSON untouched.
type Attachment struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	DataBase64  string `json:"data_base64"`
}

// ChatMessage is a single replicated chat entry.
type ChatMessage struct {
	ID          uuid.UUID    `json:"id"`
	Author      string       `json:"author"`
	Body        string       `json:"body"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// New creates a ChatMessage with a fresh identifier and the current UTC time.
func New(author, body string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New(),
		Author:    author,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
}

// NewWithAttachments is like New but attaches the given attachments verbatim.
// Callers that accept attachments from an external source should pass them
// through CapAttachments first.
func NewWithAttachments(author, body string, attachments []Attachment) ChatMessage {
	msg := New(author, body)
	msg.Attachments = attachments
	return msg
}

// CapAttachments walks attachments in order, accumulating their decoded
// size, and skips any attachment that would push the running total past
// MaxAttachmentBytes. Later, smaller attachments can still be kept even
// after an earlier one was skipped. An attachment whose data_base64 fails
// to decode is dropped without counting against the budget.
func CapAttachments(attachments []Attachment) []Attachment {
	if len(attachments) == 0 {
		return nil
	}

	kept := make([]Attachment, 0, len(attachments))
	var total int
	for _, a := range attachments {
		decoded, err := base64.StdEncoding.DecodeString(a.DataBase64)
		if err != nil {
			continue
		}
		if total+len(decoded) > MaxAttachmentBytes {
			continue
		}
		total += len(decoded)
		kept = append(kept, a)
	}
	return kept
}
