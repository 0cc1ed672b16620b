// Package notify delivers toast style messages to users.
package notify

import (
	"log"

	"quizzems/internal/models"
)

type Notifier interface {
	Notify(kind models.ToastKind, message string)
}

// Broadcaster is the part of the websocket hub a Room needs.
type Broadcaster interface {
	BroadcastMessage(room string, messageType string, data interface{})
}

// Toast is the payload of a "toast" websocket message.
type Toast struct {
	Type    models.ToastKind `json:"type"`
	Message string           `json:"message"`
	Member  string           `json:"member,omitempty"`
}

// Log writes notifications to the standard logger.
type Log struct {
	Session string
}

func (l Log) Notify(kind models.ToastKind, message string) {
	log.Printf("Session %s [%s]: %s", l.Session, kind, message)
}

// Room sends notifications to everyone connected to a party room.
type Room struct {
	Hub    Broadcaster
	Code   string
	Member string
}

func (r Room) Notify(kind models.ToastKind, message string) {
	if r.Hub == nil || r.Code == "" {
		return
	}
	r.Hub.BroadcastMessage(r.Code, "toast", Toast{Type: kind, Message: message, Member: r.Member})
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(kind models.ToastKind, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(kind, message)
		}
	}
}
