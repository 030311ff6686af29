// Package chat defines the domain types of the relay: messages and the
// identities that author them.
package chat

import "time"

// Message is one entry of the room log. The ID is assigned by the server at
// creation time, is globally unique, and never changes. Content is never
// edited in place; a message only disappears by deletion, admin clear, or
// eviction from the bounded log.
type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Avatar    string    `json:"avatar,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Author returns the identity recorded on m.
func (m Message) Author() Identity {
	return Identity{Name: m.Name, Color: m.Color, Avatar: m.Avatar}
}

// Identity is what a client declares about itself when joining. It is not
// unique and is not authenticated beyond the room entry gate.
type Identity struct {
	Name   string `json:"name"`
	Color  string `json:"color"`
	Avatar string `json:"avatar,omitempty"`
}

// Owns reports whether the identity may delete msg. The rule is
// deliberately loose and non-cryptographic: the name must match, plus
// either the avatar or the color.
func (id Identity) Owns(msg Message) bool {
	if id.Name != msg.Name {
		return false
	}
	return id.Avatar == msg.Avatar || id.Color == msg.Color
}
