package smtp

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/soreon/mailout/internal/campaign"
)

// buildMessage constructs the RFC 5322 data for one prepared message and
// returns the generated Message-ID alongside it.
func buildMessage(from string, msg *campaign.Message, domain string, now time.Time) (string, []byte) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", from))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTML)
	buf.WriteString("\r\n")

	return messageID, buf.Bytes()
}
