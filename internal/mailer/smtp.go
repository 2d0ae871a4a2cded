package mailer

import (
	"fmt"
	"log"
	"mime"
	"net/smtp"
	"strings"
)

// SMTP sends digest mails through one SMTP account. Send never returns an
// error: expected transport failures are logged and reported as zero mails
// sent, so one bad dispatch cannot abort a notification run.
type SMTP struct {
	host     string
	port     int
	sender   string
	password string
}

func New(host string, port int, sender, password string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		sender:   sender,
		password: password,
	}
}

// Send delivers one message to all recipients at once and returns how many
// of them it was accepted for: all on success, zero on failure.
func (m *SMTP) Send(recipients []string, subject, body string, isHTML bool) int {
	if len(recipients) == 0 {
		return 0
	}

	msg := m.message(recipients, subject, body, isHTML)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.sender, m.password, m.host)

	if err := smtp.SendMail(addr, auth, m.sender, recipients, []byte(msg)); err != nil {
		log.Printf("[ERROR] send mail failed: %v", err)
		return 0
	}

	log.Printf("mail sent to %d recipients", len(recipients))

	return len(recipients)
}

func (m *SMTP) message(recipients []string, subject, body string, isHTML bool) string {
	contentType := "text/plain"
	if isHTML {
		contentType = "text/html"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ";"))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return msg.String()
}
