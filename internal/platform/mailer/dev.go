package mailer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/justbook-waitlist/pkg/logger"
	"github.com/google/uuid"
)

// DevMailer prints emails instead of sending them.
type DevMailer struct {
	out io.Writer
}

func NewDevMailer(out io.Writer) *DevMailer {
	if out == nil {
		out = os.Stdout
	}
	return &DevMailer{out: out}
}

func (d *DevMailer) Enabled() bool {
	return true
}

func (d *DevMailer) Send(ctx context.Context, msg Message) (string, error) {
	id := "dev-" + uuid.NewString()
	logger.InfoContext(ctx, "📧 [DEV MAIL] Email captured",
		"id", id,
		"to", msg.ToEmail,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
		"inline", len(msg.Inline),
	)

	fmt.Fprintf(d.out, "\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"📧 EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s (%s)\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		msg.ToEmail, msg.ToName, msg.Subject, msg.Text)

	return id, nil
}
