// Package notify hands generated artifacts to the outbound mail
// transport. Delivery is fire-and-forget: the dispatcher reports the
// handoff outcome, never eventual delivery, and nothing is retried.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/adaeze-umeh/donation-receipts/internal/common"
)

// Message is one outbound notification carrying a single artifact.
type Message struct {
	FromLabel      string
	To             []string
	Cc             []string
	Subject        string
	Text           string
	HTML           string
	AttachmentPath string
	AttachmentName string
}

// RecipientOption selects how the recipient list is composed.
type RecipientOption string

const (
	// ToCustomer sends to the payer's own address.
	ToCustomer RecipientOption = "customer"
	// ToCustom sends to an operator-supplied address.
	ToCustom RecipientOption = "custom"
	// ToBoth sends to the payer with the custom address copied in.
	ToBoth RecipientOption = "cc"
)

// ComposeRecipients resolves the To/Cc lists for a recipient option.
func ComposeRecipients(opt RecipientOption, customerEmail, customEmail string) (to, cc []string) {
	switch opt {
	case ToCustom:
		return compact(customEmail), nil
	case ToBoth:
		return compact(customerEmail), compact(customEmail)
	default:
		return compact(customerEmail), nil
	}
}

func compact(addrs ...string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Mailer dispatches messages over SMTP.
type Mailer struct {
	cfg    common.SMTPConfig
	logger *zap.Logger
}

func NewMailer(cfg common.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, logger: logger}
}

// Send builds and hands off one message. Any failure is terminal and
// surfaced as a dispatch error.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", common.ErrDispatch)
	}

	mm := mail.NewMsg()
	if err := mm.FromFormat(msg.FromLabel, m.cfg.Username); err != nil {
		return fmt.Errorf("%w: from address: %v", common.ErrDispatch, err)
	}
	if err := mm.To(msg.To...); err != nil {
		return fmt.Errorf("%w: to address: %v", common.ErrDispatch, err)
	}
	if len(msg.Cc) > 0 {
		if err := mm.Cc(msg.Cc...); err != nil {
			return fmt.Errorf("%w: cc address: %v", common.ErrDispatch, err)
		}
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		mm.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	if msg.AttachmentPath != "" {
		name := msg.AttachmentName
		if name == "" {
			name = "receipt.pdf"
		}
		mm.AttachFile(msg.AttachmentPath, mail.WithFileName(name))
	}

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", common.ErrDispatch, err)
	}

	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		m.logger.Warn("notify.send_failed",
			zap.Strings("to", msg.To),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", common.ErrDispatch, err)
	}

	m.logger.Info("notify.sent",
		zap.Strings("to", msg.To),
		zap.Int("cc", len(msg.Cc)),
		zap.String("attachment", msg.AttachmentPath),
	)
	return nil
}
