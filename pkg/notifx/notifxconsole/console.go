package notifxconsole

import (
	"context"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx"
)

// Provider writes emails to the log instead of sending them. Used when no
// mail transport is configured.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

var _ notifx.EmailSender = (*Provider)(nil)

func (p *Provider) SendEmail(_ context.Context, msg notifx.EmailMessage, opts ...notifx.Option) error {
	so := notifx.ApplySendOptions(opts)

	logx.WithFields(logx.Fields{
		"from":    msg.From,
		"to":      strings.Join(msg.To, ", "),
		"subject": msg.Subject,
		"tags":    so.Tags,
	}).Info("notifx/console: email not sent (console mode)")

	if msg.TextBody != "" {
		logx.Debugf("notifx/console: text body:\n%s", msg.TextBody)
	}
	if msg.HTMLBody != "" {
		logx.Debugf("notifx/console: html body:\n%s", msg.HTMLBody)
	}
	return nil
}
