package api

import (
	"context"
	"errors"
	"sync"
)

var errMailUnavailable = errors.New("mail service unavailable")

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type MailerMock struct {
	mock sync.Mutex

	// Failures makes the next calls fail.
	Failures int
	Calls    int
	Sent     []SentEmail
}

func (m *MailerMock) SendEmail(ctx context.Context, to, subject, body string) error {
	m.mock.Lock()
	defer m.mock.Unlock()

	m.Calls++
	if m.Failures > 0 {
		m.Failures--
		return errMailUnavailable
	}

	m.Sent = append(m.Sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *MailerMock) SentEmails() []SentEmail {
	m.mock.Lock()
	defer m.mock.Unlock()

	return append([]SentEmail(nil), m.Sent...)
}

func (m *MailerMock) CallCount() int {
	m.mock.Lock()
	defer m.mock.Unlock()

	return m.Calls
}
