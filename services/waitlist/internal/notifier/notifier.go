package notifier

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/diagnosis/justbook-waitlist/internal/platform/mailer"
	"github.com/diagnosis/justbook-waitlist/internal/utils"
	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/diagnosis/justbook-waitlist/pkg/metrics"
)

type Kind string

const (
	KindWelcome     Kind = "welcome"
	KindUnsubscribe Kind = "unsubscribe"
)

const (
	logoCID         = "jblogo"
	defaultName     = "Friend"
	defaultTimeout  = 10 * time.Second
	welcomeSubject  = "Welcome to the JustBook Waitlist! 🚀"
	unsubscribeSubj = "Removed from JustBook Waitlist"
)

var ErrTransportDisabled = errors.New("mail transport is not configured")

//go:embed templates/email.html
var templateFS embed.FS

var emailTemplate = template.Must(template.ParseFS(templateFS, "templates/email.html"))

// Delivery is the outcome of one notification attempt.
type Delivery struct {
	Kind      Kind
	Recipient string
	Delivered bool
	MessageID string
	Err       error
}

type Notifier struct {
	transport mailer.Transport
	logo      []byte
	timeout   time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New builds a Notifier. logo may be nil, in which case the email has no
// inline image.
func New(transport mailer.Transport, logo []byte, timeout time.Duration, m *metrics.Metrics) *Notifier {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Notifier{
		transport: transport,
		logo:      logo,
		timeout:   timeout,
		metrics:   m,
		now:       time.Now,
	}
}

// Configured reports whether the transport has credentials.
func (n *Notifier) Configured() bool {
	return n.transport != nil && n.transport.Enabled()
}

// Notify makes exactly one delivery attempt. Failures are logged and
// returned in the Delivery, never as an error.
func (n *Notifier) Notify(ctx context.Context, kind Kind, email, name string) Delivery {
	d := Delivery{Kind: kind, Recipient: email}

	switch {
	case !n.Configured():
		d.Err = ErrTransportDisabled
	default:
		msg, err := n.render(kind, email, name)
		if err != nil {
			d.Err = fmt.Errorf("render %s email: %w", kind, err)
			break
		}
		// The request may finish before the mail server answers.
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		d.MessageID, d.Err = n.transport.Send(sendCtx, msg)
		cancel()
	}

	d.Delivered = d.Err == nil
	n.metrics.IncNotification(string(kind), d.Delivered)
	if d.Delivered {
		logger.InfoContext(ctx, "Notification sent", "kind", kind, "to", utils.MaskEmail(email), "message_id", d.MessageID)
	} else {
		logger.WarnContext(ctx, "Notification failed", "kind", kind, "to", utils.MaskEmail(email), "error", d.Err)
	}
	return d
}

type emailData struct {
	Welcome     bool
	DisplayName string
	Email       string
	HasLogo     bool
	Year        int
}

func (n *Notifier) render(kind Kind, email, name string) (mailer.Message, error) {
	var subject string
	switch kind {
	case KindWelcome:
		subject = welcomeSubject
	case KindUnsubscribe:
		subject = unsubscribeSubj
	default:
		return mailer.Message{}, fmt.Errorf("unknown notification kind %q", kind)
	}

	displayName := utils.NormalizeName(name)
	if displayName == "" {
		displayName = defaultName
	}

	data := emailData{
		Welcome:     kind == KindWelcome,
		DisplayName: displayName,
		Email:       email,
		HasLogo:     len(n.logo) > 0,
		Year:        n.now().Year(),
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, data); err != nil {
		return mailer.Message{}, err
	}

	msg := mailer.Message{
		ToEmail: email,
		ToName:  utils.NormalizeName(name),
		Subject: subject,
		Text:    plainText(data),
		HTML:    html.String(),
	}
	if data.HasLogo {
		msg.Inline = []mailer.Inline{{
			ContentID:   logoCID,
			Filename:    "logo.png",
			ContentType: http.DetectContentType(n.logo),
			Data:        n.logo,
		}}
	}
	return msg, nil
}

func plainText(d emailData) string {
	if d.Welcome {
		return fmt.Sprintf("Welcome to the Inner Circle, %s!\n\n"+
			"We've registered %s for exclusive early access to JustBook.\n"+
			"From barbers to clinics, your next session is just a tap away.\n\n"+
			"The JustBook Team", d.DisplayName, d.Email)
	}
	return fmt.Sprintf("Hello %s,\n\n"+
		"This is an official confirmation that %s has been removed from the JustBook waitlist.\n"+
		"You will no longer receive updates about our beta launch. If this was a mistake, you are always welcome back.\n\n"+
		"The JustBook Team", d.DisplayName, d.Email)
}
