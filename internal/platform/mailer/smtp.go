package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

const (
	relatedBoundary     = "justbook-related-boundary"
	alternativeBoundary = "justbook-alternative-boundary"
)

type SMTPMailer struct {
	Host     string
	Port     int
	From     string
	FromName string
	User     string
	Pass     string
	UseTLS   bool // implicit TLS (port 465); otherwise STARTTLS when advertised
}

func NewSMTPMailer(host string, port int, from, fromName, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:     strings.TrimSpace(host),
		Port:     port,
		From:     strings.TrimSpace(from),
		FromName: strings.TrimSpace(fromName),
		User:     strings.TrimSpace(user),
		Pass:     strings.TrimSpace(pass),
		UseTLS:   useTLS,
	}
}

// Enabled reports whether credentials are present.
func (s *SMTPMailer) Enabled() bool {
	return s.Host != "" && s.From != "" && s.User != "" && s.Pass != ""
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	toEmail := strings.TrimSpace(msg.ToEmail)
	if toEmail == "" {
		return "", errors.New("empty recipient email")
	}
	if s.Host == "" || s.From == "" {
		return "", errors.New("smtp mailer disabled (missing SMTP_HOST or SMTP_FROM)")
	}

	body, err := buildMIMEMessage(mail.Address{Name: s.FromName, Address: s.From}, msg, time.Now())
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	conn, err := s.dial(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if !s.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
				return "", fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}

	if s.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.User, s.Pass, s.Host)); err != nil {
			return "", fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return "", err
	}
	if err := c.Rcpt(toEmail); err != nil {
		return "", err
	}
	w, err := c.Data()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(body); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return "", c.Quit()
}

func (s *SMTPMailer) dial(ctx context.Context, addr string) (net.Conn, error) {
	if s.UseTLS {
		d := &tls.Dialer{Config: &tls.Config{ServerName: s.Host}}
		return d.DialContext(ctx, "tcp", addr)
	}
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// buildMIMEMessage renders msg as multipart/alternative, wrapped in
// multipart/related when inline attachments are present.
func buildMIMEMessage(from mail.Address, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	to := mail.Address{Name: msg.ToName, Address: strings.TrimSpace(msg.ToEmail)}

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	if len(msg.Inline) > 0 {
		fmt.Fprintf(&buf, "Content-Type: multipart/related; boundary=%s\r\n\r\n", relatedBoundary)
		fmt.Fprintf(&buf, "--%s\r\n", relatedBoundary)
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", alternativeBoundary)
	if err := writeTextPart(&buf, "text/plain", msg.Text); err != nil {
		return nil, err
	}
	if err := writeTextPart(&buf, "text/html", msg.HTML); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "--%s--\r\n", alternativeBoundary)

	if len(msg.Inline) == 0 {
		return buf.Bytes(), nil
	}

	for _, in := range msg.Inline {
		contentType := in.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fmt.Fprintf(&buf, "\r\n--%s\r\n", relatedBoundary)
		fmt.Fprintf(&buf, "Content-Type: %s; name=%q\r\n", contentType, in.Filename)
		fmt.Fprintf(&buf, "Content-Transfer-Encoding: base64\r\n")
		fmt.Fprintf(&buf, "Content-ID: <%s>\r\n", in.ContentID)
		fmt.Fprintf(&buf, "Content-Disposition: inline; filename=%q\r\n\r\n", in.Filename)
		writeBase64Lines(&buf, in.Data)
	}
	fmt.Fprintf(&buf, "\r\n--%s--\r\n", relatedBoundary)

	return buf.Bytes(), nil
}

func writeTextPart(buf *bytes.Buffer, contentType, content string) error {
	fmt.Fprintf(buf, "--%s\r\n", alternativeBoundary)
	fmt.Fprintf(buf, "Content-Type: %s; charset=utf-8\r\n", contentType)
	fmt.Fprintf(buf, "Content-Transfer-Encoding: quoted-printable\r\n\r\n")

	qp := quotedprintable.NewWriter(buf)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	if err := qp.Close(); err != nil {
		return err
	}
	buf.WriteString("\r\n\r\n")
	return nil
}

func writeBase64Lines(buf *bytes.Buffer, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	if encoded != "" {
		buf.WriteString(encoded)
		buf.WriteString("\r\n")
	}
}
