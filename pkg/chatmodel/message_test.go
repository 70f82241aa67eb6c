package chatmodel

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeFixture(t *testing.T, size int) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(make([]byte, size))
}

func TestCapAttachmentsKeepsWithinBudget(t *testing.T) {
	small := encodeFixture(t, 1024)
	attachments := []Attachment{
		{Filename: "a", DataBase64: small},
		{Filename: "b", DataBase64: small},
	}

	kept := CapAttachments(attachments)
	assert.Len(t, kept, 2)
}

func TestCapAttachmentsSkipsOverflowButKeepsLaterSmallOnes(t *testing.T) {
	big := encodeFixture(t, MaxAttachmentBytes-100)
	tooBig := encodeFixture(t, 200)
	small := encodeFixture(t, 50)
	attachments := []Attachment{
		{Filename: "big", DataBase64: big},
		{Filename: "too-big", DataBase64: tooBig},
		{Filename: "small", DataBase64: small},
	}

	kept := CapAttachments(attachments)
	require.Len(t, kept, 2, "big kept, too-big skipped, small kept")
	assert.Equal(t, "big", kept[0].Filename)
	assert.Equal(t, "small", kept[1].Filename)
}

func TestCapAttachmentsDropsUndecodable(t *testing.T) {
	attachments := []Attachment{
		{Filename: "bad", DataBase64: "not-valid-base64!!"},
		{Filename: "good", DataBase64: encodeFixture(t, 8)},
	}

	kept := CapAttachments(attachments)
	require.Len(t, kept, 1)
	assert.Equal(t, "good", kept[0].Filename)
}

func TestCapAttachmentsEmpty(t *testing.T) {
	assert.Nil(t, CapAttachments(nil))
}

func TestNewWithAttachments(t *testing.T) {
	msg := NewWithAttachments("nick", "hi", []Attachment{{Filename: "f"}})
	assert.Equal(t, "nick", msg.Author)
	assert.Equal(t, "hi", msg.Body)
	assert.Len(t, msg.Attachments, 1)
	assert.False(t, msg.Timestamp.IsZero())
}
