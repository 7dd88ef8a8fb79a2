package chat

import (
	"encoding/json"
	"fmt"

	"github.com/Mehdi856/Chat-Project/tools/decode"
	"github.com/Mehdi856/Chat-Project/tools/errs"
)

// Kind discriminates the envelope wire types. Unknown tags decode to
// KindUnknown and are ignored by the session loop.
type Kind string

const (
	KindUnknown           Kind = ""
	KindAuth              Kind = "auth"
	KindMessage           Kind = "message"
	KindGroupMessage      Kind = "group_message"
	KindTyping            Kind = "typing"
	KindGroupTyping       Kind = "group_typing"
	KindNotification      Kind = "notification"
	KindGroupNotification Kind = "group_notification"
	KindProfilePicture    Kind = "profile_picture_update"
)

var ErrMalformedFrame = errs.NewCodeError(errs.CodeArgs, "malformed frame")

// Frame is the closed variant set routed by the gateway. Frames are transient:
// decoded once at the session boundary, routed, then discarded.
type Frame interface {
	Kind() Kind
	validate() error
}

// AuthFrame is the handshake hello. It is only legal as the first frame of a
// connection and is never routed as a chat message.
type AuthFrame struct {
	Token string `json:"token"`
}

func (*AuthFrame) Kind() Kind { return KindAuth }
func (f *AuthFrame) validate() error {
	if f.Token == "" {
		return ErrMalformedFrame.WithDetail("auth: missing token")
	}
	return nil
}

type MessageFrame struct {
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Text       string `json:"text"`
	Attachment string `json:"attachment,omitempty"`
	Ts         int64  `json:"ts,omitempty"`
}

func (*MessageFrame) Kind() Kind { return KindMessage }
func (f *MessageFrame) validate() error {
	if f.Receiver == "" {
		return ErrMalformedFrame.WithDetail("message: missing receiver")
	}
	if f.Text == "" && f.Attachment == "" {
		return ErrMalformedFrame.WithDetail("message: empty body")
	}
	return nil
}

type GroupMessageFrame struct {
	Sender     string `json:"sender"`
	GroupID    string `json:"group_id"`
	Text       string `json:"text"`
	Attachment string `json:"attachment,omitempty"`
	Ts         int64  `json:"ts,omitempty"`
}

func (*GroupMessageFrame) Kind() Kind { return KindGroupMessage }
func (f *GroupMessageFrame) validate() error {
	if f.GroupID == "" {
		return ErrMalformedFrame.WithDetail("group_message: missing group_id")
	}
	if f.Text == "" && f.Attachment == "" {
		return ErrMalformedFrame.WithDetail("group_message: empty body")
	}
	return nil
}

type TypingFrame struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

func (*TypingFrame) Kind() Kind { return KindTyping }
func (f *TypingFrame) validate() error {
	if f.Receiver == "" {
		return ErrMalformedFrame.WithDetail("typing: missing receiver")
	}
	return nil
}

type GroupTypingFrame struct {
	Sender  string `json:"sender"`
	GroupID string `json:"group_id"`
}

func (*GroupTypingFrame) Kind() Kind { return KindGroupTyping }
func (f *GroupTypingFrame) validate() error {
	if f.GroupID == "" {
		return ErrMalformedFrame.WithDetail("group_typing: missing group_id")
	}
	return nil
}

type NotificationFrame struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

func (*NotificationFrame) Kind() Kind { return KindNotification }
func (f *NotificationFrame) validate() error {
	if f.Receiver == "" {
		return ErrMalformedFrame.WithDetail("notification: missing receiver")
	}
	return nil
}

type GroupNotificationFrame struct {
	Sender  string `json:"sender"`
	GroupID string `json:"group_id"`
	Text    string `json:"text"`
}

func (*GroupNotificationFrame) Kind() Kind { return KindGroupNotification }
func (f *GroupNotificationFrame) validate() error {
	if f.GroupID == "" {
		return ErrMalformedFrame.WithDetail("group_notification: missing group_id")
	}
	return nil
}

type ProfilePictureFrame struct {
	Sender string `json:"sender"`
	URL    string `json:"url"`
}

func (*ProfilePictureFrame) Kind() Kind { return KindProfilePicture }
func (f *ProfilePictureFrame) validate() error {
	if f.URL == "" {
		return ErrMalformedFrame.WithDetail("profile_picture_update: missing url")
	}
	return nil
}

// UnknownFrame carries an unrecognized type tag. It is dropped, not an error.
type UnknownFrame struct {
	Type string
}

func (*UnknownFrame) Kind() Kind      { return KindUnknown }
func (*UnknownFrame) validate() error { return nil }

// DecodeFrame parses one wire envelope. The raw payload is unmarshalled once;
// the type tag selects the variant and the remaining fields are decoded into
// it. A missing/empty tag or a failed variant decode is a protocol error; an
// unrecognized tag yields *UnknownFrame with a nil error.
func DecodeFrame(raw []byte) (Frame, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ErrMalformedFrame.WithDetail(err.Error())
	}
	tag, _ := m["type"].(string)
	if tag == "" {
		return nil, ErrMalformedFrame.WithDetail("missing type")
	}

	var (
		f   Frame
		err error
	)
	switch Kind(tag) {
	case KindAuth:
		f, err = decodeInto[AuthFrame](m)
	case KindMessage:
		f, err = decodeInto[MessageFrame](m)
	case KindGroupMessage:
		f, err = decodeInto[GroupMessageFrame](m)
	case KindTyping:
		f, err = decodeInto[TypingFrame](m)
	case KindGroupTyping:
		f, err = decodeInto[GroupTypingFrame](m)
	case KindNotification:
		f, err = decodeInto[NotificationFrame](m)
	case KindGroupNotification:
		f, err = decodeInto[GroupNotificationFrame](m)
	case KindProfilePicture:
		f, err = decodeInto[ProfilePictureFrame](m)
	default:
		return &UnknownFrame{Type: tag}, nil
	}
	if err != nil {
		return nil, err
	}
	if verr := f.validate(); verr != nil {
		return nil, verr
	}
	return f, nil
}

func decodeInto[T any](m map[string]any) (Frame, error) {
	out, err := decode.DecodeMap[T](m)
	if err != nil {
		return nil, ErrMalformedFrame.WithDetail(err.Error())
	}
	f, ok := any(out).(Frame)
	if !ok {
		return nil, fmt.Errorf("variant %T does not implement Frame", out)
	}
	return f, nil
}

// EncodeFrame serializes a frame for the wire, injecting the type tag.
func EncodeFrame(f Frame) ([]byte, error) {
	body, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	m["type"] = string(f.Kind())
	return json.Marshal(m)
}
