package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/msomdec/quill/internal/domain"
)

// SMTPConfig describes the outgoing mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// SendFunc hands a fully formed message to a mail server.
type SendFunc func(ctx context.Context, cfg SMTPConfig, to string, msg []byte) error

// SMTPMailer sends multipart text/HTML email through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send SendFunc
	now  func() time.Time
}

// NewSMTPMailer returns an SMTPMailer. A nil send dials the server
// described by cfg.
func NewSMTPMailer(cfg SMTPConfig, send SendFunc) *SMTPMailer {
	if send == nil {
		send = dialAndSend
	}
	return &SMTPMailer{cfg: cfg, send: send, now: time.Now}
}

func (m *SMTPMailer) Send(ctx context.Context, msg domain.Email) error {
	body, err := buildMessage(m.cfg.From, msg, m.now())
	if err != nil {
		return fmt.Errorf("%w: build message: %w", domain.ErrDeliveryFailure, err)
	}
	if err := m.send(ctx, m.cfg, msg.To, body); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailure, err)
	}
	return nil
}

// buildMessage renders headers and a multipart/alternative body. The
// HTML part is omitted when empty.
func buildMessage(from string, msg domain.Email, date time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writePart(mw, "text/plain; charset=utf-8", msg.TextBody); err != nil {
		return nil, err
	}
	if msg.HTMLBody != "" {
		if err := writePart(mw, "text/html; charset=utf-8", msg.HTMLBody); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "To: %s\r\n", msg.To)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "Date: %s\r\n", date.Format(time.RFC1123Z))
	out.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/alternative; boundary=%q\r\n", mw.Boundary())
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, content string) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Type", contentType)
	header.Set("Content-Transfer-Encoding", "quoted-printable")

	w, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}

func dialAndSend(ctx context.Context, cfg SMTPConfig, to string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if cfg.StartTLS {
		if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return c.Quit()
}
