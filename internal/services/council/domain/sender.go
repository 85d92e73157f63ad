package domain

import (
	"context"
	"time"
)

// Channel identifies one outbound notification channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether the channel is known.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS || c == ChannelWhatsApp
}

// Recipient carries the delivery identity for one member.
type Recipient struct {
	MemberID string
	Name     string
	Email    string
	Phone    string
}

// TemplateData is the content payload handed to the channel sender. The
// engine does not know template rendering details; it only supplies
// meeting metadata and a human-readable message.
type TemplateData struct {
	Kind        NotificationKind
	MeetingID   string
	MeetingType MeetingType
	ScheduledAt time.Time
	Location    string
	Agenda      string
	Message     string
}

// ChannelSender performs the actual delivery of a notification batch on
// one channel. It is an external collaborator; the engine never delivers
// email, SMS, or WhatsApp messages itself.
type ChannelSender interface {
	Send(ctx context.Context, channel Channel, recipients []Recipient, data TemplateData) error
}
