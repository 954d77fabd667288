package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// emailSender is the part of the SES client the publisher uses.
type emailSender interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailPublisher mails new orders and status changes to the operations
// inbox through Amazon SES.
type EmailPublisher struct {
	client emailSender
	from   string
	to     []string
	types  map[EventType]bool
}

// NewEmailPublisher loads AWS credentials from the default chain.
func NewEmailPublisher(ctx context.Context, region, from string, to []string) (*EmailPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("notify.NewEmailPublisher: %w", err)
	}
	return newEmailPublisher(sesv2.NewFromConfig(cfg), from, to), nil
}

func newEmailPublisher(client emailSender, from string, to []string) *EmailPublisher {
	return &EmailPublisher{
		client: client,
		from:   from,
		to:     to,
		types: map[EventType]bool{
			EventOrderCreated:       true,
			EventOrderStatusChanged: true,
			EventSubOrderUpdated:    true,
		},
	}
}

func (p *EmailPublisher) Publish(ctx context.Context, ev Event) error {
	if !p.types[ev.Type] {
		return nil
	}
	subject, body := renderEmail(ev)
	_, err := p.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(p.from),
		Destination:      &types.Destination{ToAddresses: p.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(body)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("notify.EmailPublisher: %w", err)
	}
	return nil
}

func (p *EmailPublisher) Close() error { return nil }

func renderEmail(ev Event) (string, string) {
	switch ev.Type {
	case EventOrderCreated:
		return fmt.Sprintf("New order %s", ev.OrderID),
			fmt.Sprintf("Order %s was placed at %s with status %s.", ev.OrderID, ev.OccurredAt.Format("2006-01-02 15:04"), ev.Status)
	case EventSubOrderUpdated:
		return fmt.Sprintf("Sub-order %s is %s", ev.SubOrderID, ev.Status),
			fmt.Sprintf("Partner %s set sub-order %s of order %s to %s.", ev.PartnerID, ev.SubOrderID, ev.OrderID, ev.Status)
	default:
		return fmt.Sprintf("Order %s is %s", ev.OrderID, ev.Status),
			fmt.Sprintf("Order %s moved to %s at %s.", ev.OrderID, ev.Status, ev.OccurredAt.Format("2006-01-02 15:04"))
	}
}
