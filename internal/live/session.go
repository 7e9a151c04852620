package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// Validation failures surfaced to callers. They never mutate the session.
var (
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrSessionClosed      = errors.New("session is closed")
)

// SessionConfig holds the limits and timings of a message session.
type SessionConfig struct {
	MaxAttachments    int
	MaxAttachmentSize int64
	ReplyDelay        time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.MaxAttachments <= 0 {
		c.MaxAttachments = 5
	}
	if c.MaxAttachmentSize <= 0 {
		c.MaxAttachmentSize = 10 << 20
	}
	if c.ReplyDelay <= 0 {
		c.ReplyDelay = 2 * time.Second
	}
}

// counterpartReplies is the per-type response table used in simulated
// mode. Selection is pseudo-random behind the session's selector seam so
// tests can substitute a fixed pick.
var counterpartReplies = map[model.MessageType][]string{
	model.MessageTypeText: {
		"Thank you for the update. I have added it to your record.",
		"Noted. Keep tracking this and let me know if anything changes.",
		"Thanks for letting me know. We will review this at your next visit.",
	},
	model.MessageTypeQuestion: {
		"Good question. Let me check your latest results and get back to you today.",
		"That depends on your current medication. Could you tell me what you are taking?",
		"I would not change anything yet. Let's discuss this at your appointment.",
	},
	model.MessageTypeUrgent: {
		"I see this is urgent. Please monitor your symptoms closely; if they worsen, seek emergency care.",
		"Thank you for flagging this. I am reviewing your case now and will call you shortly.",
		"Please measure your temperature and blood pressure now and send me the values.",
	},
}

// Session is one conversational exchange between a patient and a
// provider, backed by one connection Manager. The message log is
// append-only: messages are never reordered and, once created, only their
// read flag may change.
type Session struct {
	ID       string
	localID  string
	remoteID string

	cfg    SessionConfig
	conn   *Manager
	logger *zap.Logger

	pick func(n int) int // selector seam for simulated replies
	now  func() time.Time

	mu        sync.Mutex
	messages  []model.Message
	closed    bool
	timerSeq  uint64
	replyWait map[uint64]*time.Timer
}

// NewSession creates a Session between localID and remoteID on top of the
// given connection manager and subscribes to its inbound payloads.
func NewSession(localID, remoteID string, conn *Manager, cfg SessionConfig, logger *zap.Logger) *Session {
	cfg.applyDefaults()

	s := &Session{
		ID:        uuid.New().String(),
		localID:   localID,
		remoteID:  remoteID,
		cfg:       cfg,
		conn:      conn,
		logger:    logger,
		pick:      rand.Intn,
		now:       time.Now,
		replyWait: make(map[uint64]*time.Timer),
	}

	conn.OnPayload(s.handlePayload)

	return s
}

// outboundMessage is the wire form of a chat message.
type outboundMessage struct {
	Type    string        `json:"type"`
	Message model.Message `json:"message"`
}

// Send validates and appends an outgoing message, then delegates
// transmission to the connection manager. Validation failures are
// returned without mutating the message log. In simulated mode a
// counterpart reply is scheduled after the configured delay.
func (s *Session) Send(text string, attachments []model.Attachment, msgType model.MessageType) (model.Message, error) {
	if len(attachments) > s.cfg.MaxAttachments {
		return model.Message{}, fmt.Errorf("%w: %d files exceeds the limit of %d",
			ErrTooManyAttachments, len(attachments), s.cfg.MaxAttachments)
	}
	for _, a := range attachments {
		if a.Size > s.cfg.MaxAttachmentSize {
			return model.Message{}, fmt.Errorf("%w: %q is %d bytes, limit is %d",
				ErrAttachmentTooLarge, a.Name, a.Size, s.cfg.MaxAttachmentSize)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.Message{}, ErrSessionClosed
	}

	msg := model.Message{
		ID:          uuid.New().String(),
		SenderID:    s.localID,
		ReceiverID:  s.remoteID,
		Text:        text,
		Attachments: attachments,
		Type:        msgType,
		IsRead:      false,
		CreatedAt:   s.now(),
	}

	if err := s.conn.Send(outboundMessage{Type: "new_message", Message: msg}); err != nil {
		return model.Message{}, fmt.Errorf("failed to send message: %w", err)
	}

	s.messages = append(s.messages, msg)

	if s.conn.Simulated() {
		s.scheduleReplyLocked(msgType)
	}

	return msg, nil
}

// scheduleReplyLocked picks a counterpart reply for the message type and
// schedules its append after the reply delay. Caller holds the lock.
func (s *Session) scheduleReplyLocked(msgType model.MessageType) {
	replies, ok := counterpartReplies[msgType]
	if !ok {
		replies = counterpartReplies[model.MessageTypeText]
	}
	text := replies[s.pick(len(replies))]

	s.timerSeq++
	id := s.timerSeq
	s.replyWait[id] = time.AfterFunc(s.cfg.ReplyDelay, func() {
		s.appendReply(id, text)
	})
}

// appendReply appends a scheduled simulated reply unless the session was
// closed in the meantime.
func (s *Session) appendReply(timerID uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	delete(s.replyWait, timerID)

	s.messages = append(s.messages, model.Message{
		ID:         uuid.New().String(),
		SenderID:   s.remoteID,
		ReceiverID: s.localID,
		Text:       text,
		Type:       model.MessageTypeText,
		IsRead:     false,
		CreatedAt:  s.now(),
	})

	s.logger.Debug("simulated reply appended", zap.String("session_id", s.ID))
}

// handlePayload consumes inbound live-channel payloads relevant to this
// conversation.
func (s *Session) handlePayload(p Payload) {
	switch p.Type {
	case "new_message":
		var in outboundMessage
		if err := json.Unmarshal(p.Raw, &in); err != nil {
			s.logger.Warn("discarding malformed new_message payload", zap.Error(err))
			return
		}
		if in.Message.SenderID != s.remoteID {
			return
		}
		s.mu.Lock()
		if !s.closed {
			s.messages = append(s.messages, in.Message)
		}
		s.mu.Unlock()

	case "message_read":
		var in struct {
			MessageID string `json:"message_id"`
		}
		if err := json.Unmarshal(p.Raw, &in); err != nil {
			s.logger.Warn("discarding malformed message_read payload", zap.Error(err))
			return
		}
		s.mu.Lock()
		for i := range s.messages {
			if s.messages[i].ID == in.MessageID {
				s.messages[i].IsRead = true
				break
			}
		}
		s.mu.Unlock()
	}
}

// Messages returns a copy of the message log in insertion order.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// MarkRead flags every message from the given party as read and notifies
// the counterpart over the live channel on a best-effort basis.
func (s *Session) MarkRead(otherPartyID string) {
	type readReceipt struct {
		Type      string `json:"type"`
		ReaderID  string `json:"reader_id"`
		MessageID string `json:"message_id"`
	}

	s.mu.Lock()
	var receipts []readReceipt
	for i := range s.messages {
		if s.messages[i].SenderID == otherPartyID && !s.messages[i].IsRead {
			s.messages[i].IsRead = true
			receipts = append(receipts, readReceipt{
				Type:      "message_read",
				ReaderID:  s.localID,
				MessageID: s.messages[i].ID,
			})
		}
	}
	s.mu.Unlock()

	for _, r := range receipts {
		if err := s.conn.Send(r); err != nil {
			s.logger.Debug("read receipt not delivered", zap.Error(err))
		}
	}
}

// UnreadCount returns the number of unread messages from the given party.
func (s *Session) UnreadCount(fromID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.messages {
		if s.messages[i].SenderID == fromID && !s.messages[i].IsRead {
			n++
		}
	}
	return n
}

// Close cancels any pending simulated replies and stops the session from
// accepting or appending further messages. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.replyWait {
		t.Stop()
		delete(s.replyWait, id)
	}
}
