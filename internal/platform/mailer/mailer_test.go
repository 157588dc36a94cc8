package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMIMEMessage(t *testing.T) {
	from := mail.Address{Name: "JustBook", Address: "team@justbook.co"}
	msg := Message{
		ToEmail: "a@x.com",
		Subject: "Welcome to the JustBook Waitlist! 🚀",
		Text:    "Welcome aboard",
		HTML:    `<img src="cid:jblogo"><p>Welcome aboard</p>`,
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("alternative only", func(t *testing.T) {
		raw, err := buildMIMEMessage(from, msg, now)
		require.NoError(t, err)
		body := string(raw)

		assert.Contains(t, body, `From: "JustBook" <team@justbook.co>`)
		assert.Contains(t, body, "To: <a@x.com>")
		assert.Contains(t, body, "Subject: =?utf-8?q?")
		assert.Contains(t, body, "Content-Type: multipart/alternative; boundary="+alternativeBoundary)
		assert.Contains(t, body, "Content-Type: text/plain; charset=utf-8")
		assert.Contains(t, body, "Content-Type: text/html; charset=utf-8")
		assert.NotContains(t, body, "multipart/related")
		assert.True(t, strings.HasSuffix(body, "--"+alternativeBoundary+"--\r\n"))
	})

	t.Run("with inline logo", func(t *testing.T) {
		logo := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 40)
		withLogo := msg
		withLogo.Inline = []Inline{{ContentID: "jblogo", Filename: "logo.png", ContentType: "image/png", Data: logo}}

		raw, err := buildMIMEMessage(from, withLogo, now)
		require.NoError(t, err)
		body := string(raw)

		assert.Contains(t, body, "Content-Type: multipart/related; boundary="+relatedBoundary)
		assert.Contains(t, body, "Content-ID: <jblogo>")
		assert.Contains(t, body, `Content-Disposition: inline; filename="logo.png"`)
		assert.True(t, strings.HasSuffix(body, "--"+relatedBoundary+"--\r\n"))

		encoded := base64.StdEncoding.EncodeToString(logo)
		assert.Contains(t, body, encoded[:76]+"\r\n")
		for _, line := range strings.Split(body, "\r\n") {
			assert.LessOrEqual(t, len(line), 998)
		}
	})
}

// startFakeSMTP accepts one plain SMTP session and returns the DATA payload.
func startFakeSMTP(t *testing.T) (string, int, <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 fake.local ESMTP")
		var data string
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				tp.PrintfLine("250-fake.local")
				tp.PrintfLine("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
				tp.PrintfLine("250 OK")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				lines, err := tp.ReadDotLines()
				if err != nil {
					return
				}
				data = strings.Join(lines, "\n")
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				received <- data
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, received
}

func TestSMTPMailer_Send(t *testing.T) {
	host, port, received := startFakeSMTP(t)
	m := NewSMTPMailer(host, port, "team@justbook.co", "JustBook", "", "", false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.Send(ctx, Message{ToEmail: "a@x.com", Subject: "Hi", Text: "hello", HTML: "<p>hello</p>"})
	require.NoError(t, err)

	select {
	case data := <-received:
		assert.Contains(t, data, "Subject: Hi")
		assert.Contains(t, data, "<p>hello</p>")
	case <-time.After(5 * time.Second):
		t.Fatal("fake smtp server did not receive a message")
	}
}

func TestSMTPMailer_EnabledAndValidation(t *testing.T) {
	assert.False(t, NewSMTPMailer("smtp.gmail.com", 465, "team@justbook.co", "JustBook", "team@justbook.co", "", true).Enabled())
	assert.True(t, NewSMTPMailer("smtp.gmail.com", 465, "team@justbook.co", "JustBook", "team@justbook.co", "pw", true).Enabled())

	m := NewSMTPMailer("smtp.gmail.com", 465, "team@justbook.co", "JustBook", "u", "p", true)
	_, err := m.Send(context.Background(), Message{ToEmail: "  "})
	assert.EqualError(t, err, "empty recipient email")
}

func TestMailerSend_Disabled(t *testing.T) {
	m := NewMailerSend("", "JustBook", "hello@justbook.co")
	assert.False(t, m.Enabled())

	_, err := m.Send(context.Background(), Message{ToEmail: "a@x.com"})
	assert.Error(t, err)
}

func TestDevMailer(t *testing.T) {
	var out bytes.Buffer
	d := NewDevMailer(&out)
	assert.True(t, d.Enabled())

	id, err := d.Send(context.Background(), Message{ToEmail: "a@x.com", Subject: "Removed from JustBook Waitlist", Text: "bye"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "dev-"))
	assert.Contains(t, out.String(), "Subject: Removed from JustBook Waitlist")
	assert.Contains(t, out.String(), "bye")
}
