// Package smtp implements the submission client used to deliver campaign
// messages through a configured SMTP relay.
package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/soreon/mailout/internal/campaign"
	"github.com/soreon/mailout/internal/dkim"
	"github.com/soreon/mailout/internal/email"
)

// ConnectionError indicates the SMTP relay is unreachable or rejected
// authentication.
type ConnectionError struct {
	Message string
}

func (e *ConnectionError) Error() string {
	return e.Message
}

// DeliveryError represents a delivery error with type information
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// Config contains the SMTP relay settings
type Config struct {
	Host     string
	Port     int
	Secure   bool // implicit TLS (port 465); otherwise opportunistic STARTTLS
	Username string
	Password string
}

// Client sends messages through an SMTP relay. A fresh connection is opened
// per operation; no connection state is shared between calls.
type Client struct {
	cfg      Config
	hostname string
	timeout  time.Duration
	logger   *slog.Logger
	signer   *dkim.Signer
}

// NewClient creates a new SMTP submission client. hostname is used for HELO
// and as the Message-ID fallback domain.
func NewClient(cfg Config, hostname string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:      cfg,
		hostname: hostname,
		timeout:  timeout,
		logger:   logger,
	}
}

// SetDKIMSigner sets the DKIM signer for outgoing messages
func (c *Client) SetDKIMSigner(signer *dkim.Signer) {
	c.signer = signer
}

// Send delivers one prepared message and returns its Message-ID.
func (c *Client) Send(ctx context.Context, from string, msg *campaign.Message) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	fromAddr := bareAddress(from)
	domain := email.ExtractDomainOrDefault(fromAddr, c.hostname)
	messageID, data := buildMessage(from, msg, domain, time.Now())

	// Sign with DKIM when configured; a signing failure downgrades to an
	// unsigned send rather than failing the delivery.
	if c.signer != nil {
		signed, err := c.signer.Sign(data)
		if err != nil {
			c.logger.Warn("DKIM signing failed, sending unsigned",
				"domain", c.signer.Domain(),
				"error", err,
			)
		} else {
			data = signed
		}
	}

	if err := client.Mail(fromAddr, nil); err != nil {
		return "", c.categorizeError(err, "MAIL FROM")
	}
	if err := client.Rcpt(msg.To, nil); err != nil {
		return "", c.categorizeError(err, fmt.Sprintf("RCPT TO %s", msg.To))
	}

	wc, err := client.Data()
	if err != nil {
		return "", c.categorizeError(err, "DATA")
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return "", &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("failed to write message data: %v", err),
		}
	}
	if err := wc.Close(); err != nil {
		return "", c.categorizeError(err, "DATA close")
	}

	client.Quit()

	c.logger.Debug("message submitted",
		"relay", c.cfg.Host,
		"from", fromAddr,
		"to", msg.To,
		"message_id", messageID,
	)

	return messageID, nil
}

// Verify checks that the relay is reachable and, when credentials are
// configured, that authentication succeeds. No message is sent.
func (c *Client) Verify(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Noop(); err != nil {
		return &ConnectionError{Message: fmt.Sprintf("NOOP failed: %v", err)}
	}

	client.Quit()
	return nil
}

// connect dials the relay, performs HELO, negotiates TLS and authenticates.
func (c *Client) connect(ctx context.Context) (*gosmtp.Client, error) {
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	tlsConfig := &tls.Config{
		ServerName: c.cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}

	var client *gosmtp.Client
	if c.cfg.Secure {
		client = gosmtp.NewClient(tls.Client(conn, tlsConfig))
		if err := client.Hello(c.hostname); err != nil {
			client.Close()
			return nil, &ConnectionError{Message: fmt.Sprintf("HELO failed: %v", err)}
		}
	} else {
		// NewClientStartTLS performs EHLO and STARTTLS itself and closes the
		// connection when the upgrade fails, so the plaintext fallback redials.
		client, err = gosmtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			c.logger.Warn("STARTTLS failed, continuing without encryption",
				"relay", c.cfg.Host,
				"error", err,
			)
			conn, err = c.dial(ctx, addr)
			if err != nil {
				return nil, err
			}
			client = gosmtp.NewClient(conn)
			if err := client.Hello(c.hostname); err != nil {
				client.Close()
				return nil, &ConnectionError{Message: fmt.Sprintf("HELO failed: %v", err)}
			}
		}
	}

	if c.cfg.Username != "" {
		auth := sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, &ConnectionError{Message: fmt.Sprintf("authentication failed: %v", err)}
		}
	}

	return client, nil
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Message: fmt.Sprintf("connection failed to %s: %v", addr, err)}
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	return conn, nil
}

// bareAddress strips a display name, leaving the plain address for the
// SMTP envelope.
func bareAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// smtpCodePattern matches SMTP response codes at word boundaries
var smtpCodePattern = regexp.MustCompile(`\b(4\d{2}|5\d{2})\b`)

// categorizeError determines if an SMTP error is temporary or permanent
func (c *Client) categorizeError(err error, stage string) *DeliveryError {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	matches := smtpCodePattern.FindStringSubmatch(err.Error())
	if len(matches) > 1 {
		code := matches[1]
		// 5xx codes are permanent errors
		if strings.HasPrefix(code, "5") {
			return &DeliveryError{Temporary: false, Message: msg}
		}
		// 4xx codes are temporary errors
		if strings.HasPrefix(code, "4") {
			return &DeliveryError{Temporary: true, Message: msg}
		}
	}

	// Assume temporary by default
	return &DeliveryError{Temporary: true, Message: msg}
}

// IsTemporaryError checks if the error is temporary
func IsTemporaryError(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true // Assume temporary if unknown
}
