package app

import (
	"context"
	"log"

	"github.com/opencondema/condema/internal/services/council/domain"
)

// LogSender writes outbound notifications to the process log. It stands in
// for channel gateways in single-binary deployments where no email or
// messaging provider is wired.
type LogSender struct{}

// Send logs one dispatch.
func (LogSender) Send(ctx context.Context, channel domain.Channel, recipients []domain.Recipient, data domain.TemplateData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Printf("notify channel=%s kind=%s meeting=%s recipients=%d message=%q",
		channel, data.Kind, data.MeetingID, len(recipients), data.Message)
	return nil
}

var _ domain.ChannelSender = LogSender{}
