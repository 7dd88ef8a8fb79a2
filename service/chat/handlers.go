package chat

import (
	"context"
	"time"

	"github.com/Mehdi856/Chat-Project/logger"
	"github.com/Mehdi856/Chat-Project/service/metrics"
	"github.com/Mehdi856/Chat-Project/tools/ids"
	"github.com/Mehdi856/Chat-Project/tools/safe"
)

const (
	storeTimeout   = 5 * time.Second
	resolveTimeout = 3 * time.Second
)

// persistAsync appends the record on its own goroutine. Storage and live
// delivery are independent: neither blocks the other, and a failed append is
// logged, not surfaced to the sender.
func (s *Server) persistAsync(rec *MessageRecord) {
	if s.store == nil {
		return
	}
	safe.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.Append(ctx, rec); err != nil {
			metrics.StoreFailures.Inc()
			logger.Errorf("[store] append failed id=%s sender=%s err=%v", rec.ID, rec.Sender, err)
			return
		}
		metrics.StoredTotal.Inc()
	})
}

// encryptText produces the at-rest form of the message body. Without a codec
// the text is stored as-is.
func (s *Server) encryptText(text string) string {
	if s.codec == nil || text == "" {
		return text
	}
	ct, err := s.codec.Encrypt(text)
	if err != nil {
		logger.Errorf("[store] encrypt failed, storing empty body: %v", err)
		return ""
	}
	return ct
}

func (s *Server) resolveMembers(groupID string) ([]string, bool) {
	if s.groups == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	members, err := s.groups.Members(ctx, groupID)
	if err != nil {
		logger.Warnf("[router] resolve group members failed group=%s err=%v", groupID, err)
		return nil, false
	}
	return members, true
}

type messageHandler struct{ s *Server }

func (*messageHandler) Kind() Kind { return KindMessage }

func (h *messageHandler) Handle(sess *Session, f Frame) error {
	m := f.(*MessageFrame)
	m.Sender = sess.Identity()
	if m.Ts == 0 {
		m.Ts = time.Now().UnixMilli()
	}

	h.s.persistAsync(&MessageRecord{
		ID:         ids.GenerateString(),
		Sender:     m.Sender,
		Receiver:   m.Receiver,
		Ciphertext: h.s.encryptText(m.Text),
		Attachment: m.Attachment,
		SentAt:     time.UnixMilli(m.Ts),
	})

	if !h.s.router.DeliverToUser(m.Receiver, m) {
		// Offline recipient is not an error: history retrieval covers it.
		logger.Debugf("[router] receiver offline user=%s", m.Receiver)
	}
	return nil
}

type groupMessageHandler struct{ s *Server }

func (*groupMessageHandler) Kind() Kind { return KindGroupMessage }

func (h *groupMessageHandler) Handle(sess *Session, f Frame) error {
	m := f.(*GroupMessageFrame)
	m.Sender = sess.Identity()
	if m.Ts == 0 {
		m.Ts = time.Now().UnixMilli()
	}

	h.s.persistAsync(&MessageRecord{
		ID:         ids.GenerateString(),
		Sender:     m.Sender,
		GroupID:    m.GroupID,
		Ciphertext: h.s.encryptText(m.Text),
		Attachment: m.Attachment,
		SentAt:     time.UnixMilli(m.Ts),
	})

	members, ok := h.s.resolveMembers(m.GroupID)
	if !ok {
		return nil
	}
	h.s.router.DeliverToGroup(members, m, m.Sender)
	return nil
}

type typingHandler struct{ s *Server }

func (*typingHandler) Kind() Kind { return KindTyping }

func (h *typingHandler) Handle(sess *Session, f Frame) error {
	m := f.(*TypingFrame)
	m.Sender = sess.Identity()
	h.s.router.DeliverToUser(m.Receiver, m)
	return nil
}

type groupTypingHandler struct{ s *Server }

func (*groupTypingHandler) Kind() Kind { return KindGroupTyping }

func (h *groupTypingHandler) Handle(sess *Session, f Frame) error {
	m := f.(*GroupTypingFrame)
	m.Sender = sess.Identity()
	members, ok := h.s.resolveMembers(m.GroupID)
	if !ok {
		return nil
	}
	h.s.router.DeliverToGroup(members, m, m.Sender)
	return nil
}

type notificationHandler struct{ s *Server }

func (*notificationHandler) Kind() Kind { return KindNotification }

func (h *notificationHandler) Handle(sess *Session, f Frame) error {
	m := f.(*NotificationFrame)
	m.Sender = sess.Identity()

	h.s.persistAsync(&MessageRecord{
		ID:         ids.GenerateString(),
		Sender:     m.Sender,
		Receiver:   m.Receiver,
		Ciphertext: h.s.encryptText(m.Text),
		SentAt:     time.Now(),
	})

	h.s.router.DeliverToUser(m.Receiver, m)
	return nil
}

type groupNotificationHandler struct{ s *Server }

func (*groupNotificationHandler) Kind() Kind { return KindGroupNotification }

func (h *groupNotificationHandler) Handle(sess *Session, f Frame) error {
	m := f.(*GroupNotificationFrame)
	m.Sender = sess.Identity()

	h.s.persistAsync(&MessageRecord{
		ID:         ids.GenerateString(),
		Sender:     m.Sender,
		GroupID:    m.GroupID,
		Ciphertext: h.s.encryptText(m.Text),
		SentAt:     time.Now(),
	})

	members, ok := h.s.resolveMembers(m.GroupID)
	if !ok {
		return nil
	}
	h.s.router.DeliverToGroup(members, m, m.Sender)
	return nil
}

type profilePictureHandler struct{ s *Server }

func (*profilePictureHandler) Kind() Kind { return KindProfilePicture }

func (h *profilePictureHandler) Handle(sess *Session, f Frame) error {
	m := f.(*ProfilePictureFrame)
	m.Sender = sess.Identity()
	h.s.router.Broadcast(m, m.Sender)
	return nil
}
