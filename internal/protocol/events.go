// Package protocol defines the JSON events exchanged over the session
// websocket. Both the server and the operator CLI speak this vocabulary.
package protocol

import "github.com/kotobachat/kotoba/internal/chat"

// Client event types.
const (
	TypeJoin       = "join"
	TypeSend       = "send"
	TypeDelete     = "delete"
	TypeAdminClear = "admin_clear"
)

// Server event types.
const (
	TypeHistory            = "history"
	TypeMessageAdded       = "message_added"
	TypeMessageRemoved     = "message_removed"
	TypePresence           = "presence"
	TypeDeleteRejected     = "delete_rejected"
	TypeAdminClearRejected = "admin_clear_rejected"
	TypeCleared            = "cleared"
)

// Rejection reasons.
const (
	ReasonNotFound      = "not_found"
	ReasonNotOwner      = "not_owner"
	ReasonNotJoined     = "not_joined"
	ReasonBadCredential = "bad_credential"
)

// ClientEvent is one message from a client. Only the fields relevant to
// Type are set.
type ClientEvent struct {
	Type       string        `json:"type"`
	Identity   chat.Identity `json:"identity"`
	Ticket     string        `json:"ticket,omitempty"`
	Text       string        `json:"text,omitempty"`
	ID         string        `json:"id,omitempty"`
	Credential string        `json:"credential,omitempty"`
}

// ServerEvent is one message to a client. Only the fields relevant to Type
// are set.
type ServerEvent struct {
	Type       string          `json:"type"`
	Messages   []chat.Message  `json:"messages,omitempty"`
	Message    *chat.Message   `json:"message,omitempty"`
	ID         string          `json:"id,omitempty"`
	Identities []chat.Identity `json:"identities,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

func NewHistory(messages []chat.Message) ServerEvent {
	return ServerEvent{Type: TypeHistory, Messages: messages}
}

func NewMessageAdded(m chat.Message) ServerEvent {
	return ServerEvent{Type: TypeMessageAdded, Message: &m}
}

func NewMessageRemoved(id string) ServerEvent {
	return ServerEvent{Type: TypeMessageRemoved, ID: id}
}

func NewPresence(identities []chat.Identity) ServerEvent {
	return ServerEvent{Type: TypePresence, Identities: identities}
}

func NewDeleteRejected(id, reason string) ServerEvent {
	return ServerEvent{Type: TypeDeleteRejected, ID: id, Reason: reason}
}

func NewAdminClearRejected(reason string) ServerEvent {
	return ServerEvent{Type: TypeAdminClearRejected, Reason: reason}
}

func NewCleared() ServerEvent {
	return ServerEvent{Type: TypeCleared}
}
