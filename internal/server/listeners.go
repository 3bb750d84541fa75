package server

import (
	"fmt"

	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/order"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/notification"
)

// orderNotification tells the shop operator about order lifecycle changes.
// Delivery channels depend on configuration: mail always, Slack when a
// webhook URL is set.
type orderNotification struct {
	subject string
	ord     order.Order
}

func (n *orderNotification) Via() []string {
	channels := []string{"mail"}
	if config.Get("SLACK_WEBHOOK", "") != "" {
		channels = append(channels, "slack")
	}
	return channels
}

func (n *orderNotification) ToMail() notification.MailData {
	return notification.MailData{
		Subject: n.subject,
		Body: fmt.Sprintf(
			"<p>%s</p><p>Order <b>%s</b> from %s, total %.2f (%d line(s)).</p>",
			n.subject, n.ord.ID, n.ord.UserName, n.ord.Total, len(n.ord.Items),
		),
	}
}

func (n *orderNotification) ToSlack() notification.SlackData {
	return notification.SlackData{
		Text: fmt.Sprintf("%s: %s by %s, total %.2f", n.subject, n.ord.ID, n.ord.UserName, n.ord.Total),
	}
}

// registerListeners wires domain events to operator notifications.
// Delivery is async so a slow SMTP server never delays checkout.
func registerListeners() {
	notification.SetSlackWebhook(config.Get("SLACK_WEBHOOK", ""))
	adminEmail := config.Get("ADMIN_EMAIL", "")
	if adminEmail == "" {
		return
	}

	notify := func(subject string) event.Handler {
		return func(payload interface{}) {
			ord, ok := payload.(order.Order)
			if !ok {
				return
			}
			notification.SendAsync(adminEmail, &orderNotification{subject: subject, ord: ord})
		}
	}

	event.Listen(order.EventPlaced, notify("New order placed"))
	event.Listen(order.EventPaid, notify("Order payment confirmed"))
	event.Listen(order.EventDeleted, notify("Order deleted"))
}
