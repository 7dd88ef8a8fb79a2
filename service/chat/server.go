package chat

import (
	"context"
	"time"

	"github.com/Mehdi856/Chat-Project/tools/crypto"
)

// TokenVerifier is the auth collaborator boundary: bearer credential in,
// stable identity out.
type TokenVerifier interface {
	VerifyCredential(token string) (string, error)
}

// MessageRecord is what the persistence collaborator durably appends. Text is
// stored as ciphertext; the live push carries plaintext.
type MessageRecord struct {
	ID         string    `bson:"_id" json:"id"`
	Sender     string    `bson:"sender" json:"sender"`
	Receiver   string    `bson:"receiver,omitempty" json:"receiver,omitempty"`
	GroupID    string    `bson:"group_id,omitempty" json:"group_id,omitempty"`
	Ciphertext string    `bson:"ciphertext" json:"ciphertext"`
	Attachment string    `bson:"attachment,omitempty" json:"attachment,omitempty"`
	SentAt     time.Time `bson:"sent_at" json:"sent_at"`
}

// MessageStore is the persistence collaborator boundary. Append is best
// effort at-least-once; failures are logged and never block delivery.
type MessageStore interface {
	Append(ctx context.Context, rec *MessageRecord) error
}

// GroupResolver resolves a group id to its member identities. The router is
// handed the resolved list; it never resolves groups itself.
type GroupResolver interface {
	Members(ctx context.Context, groupID string) ([]string, error)
}

// Presence mirrors online state into an external store (e.g. Redis). Optional.
type Presence interface {
	Online(ctx context.Context, identity string) error
	Offline(ctx context.Context, identity string) error
}

// Server owns the registry, router and dispatcher and carries the
// collaborator boundaries each session needs. Registries are instance state,
// never package globals, so tests can build isolated servers.
type Server struct {
	reg    *Registry
	router *Router
	disp   *Dispatcher

	auth     TokenVerifier
	store    MessageStore
	groups   GroupResolver
	presence Presence
	codec    *crypto.Codec

	handshakeTimeout time.Duration
}

type Options struct {
	Auth     TokenVerifier
	Store    MessageStore
	Groups   GroupResolver
	Presence Presence // optional
	Codec    *crypto.Codec

	// HandshakeTimeout bounds how long an accepted connection may sit in
	// AwaitingAuth. Zero means 30s.
	HandshakeTimeout time.Duration
}

func NewServer(opts Options) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 30 * time.Second
	}
	reg := NewRegistry()
	s := &Server{
		reg:              reg,
		router:           NewRouter(reg),
		disp:             NewDispatcher(),
		auth:             opts.Auth,
		store:            opts.Store,
		groups:           opts.Groups,
		presence:         opts.Presence,
		codec:            opts.Codec,
		handshakeTimeout: opts.HandshakeTimeout,
	}
	s.registerHandlers()
	return s
}

func (s *Server) registerHandlers() {
	s.disp.Register(&messageHandler{s: s})
	s.disp.Register(&groupMessageHandler{s: s})
	s.disp.Register(&typingHandler{s: s})
	s.disp.Register(&groupTypingHandler{s: s})
	s.disp.Register(&notificationHandler{s: s})
	s.disp.Register(&groupNotificationHandler{s: s})
	s.disp.Register(&profilePictureHandler{s: s})
}

func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Router() *Router     { return s.router }
func (s *Server) Disp() *Dispatcher   { return s.disp }
