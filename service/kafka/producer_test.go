package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mehdi856/Chat-Project/service/chat"
)

func TestConversationKeyGroup(t *testing.T) {
	key := conversationKey(&chat.MessageRecord{GroupID: "g42", Sender: "alice"})
	assert.Equal(t, "g:g42", key)
}

func TestConversationKeyDirectIsSymmetric(t *testing.T) {
	ab := conversationKey(&chat.MessageRecord{Sender: "alice", Receiver: "bob"})
	ba := conversationKey(&chat.MessageRecord{Sender: "bob", Receiver: "alice"})
	assert.Equal(t, ab, ba)
	assert.Equal(t, "d:alice:bob", ab)
}
