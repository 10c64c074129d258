package notify_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"drugscreen/internal/alerts"
	"drugscreen/internal/email"
	"drugscreen/internal/notify"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []email.Message
	fail map[string]bool
}

func newFakeTransport(failing ...string) *fakeTransport {
	f := &fakeTransport{fail: make(map[string]bool)}
	for _, addr := range failing {
		f.fail[strings.ToLower(addr)] = true
	}
	return f
}

func (f *fakeTransport) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[strings.ToLower(msg.To)] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, msg := range f.sent {
		out = append(out, msg.To)
	}
	return out
}

func (f *fakeTransport) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.sent...)
}

type fakeAlerts struct {
	mu     sync.Mutex
	raised []alerts.Alert
}

func (f *fakeAlerts) Raise(_ context.Context, alert alerts.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, alert)
	return nil
}

func (f *fakeAlerts) all() []alerts.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]alerts.Alert(nil), f.raised...)
}

type fakeRenderer struct {
	panicOn bool
}

func (f fakeRenderer) Render(_ context.Context, data notify.ContentData) (notify.Rendered, error) {
	if f.panicOn {
		panic("template exploded")
	}
	return notify.Rendered{
		Client:   notify.Content{Subject: "client " + string(data.Stage), HTML: "<p>client</p>"},
		Referral: notify.Content{Subject: "referral " + string(data.Stage), HTML: "<p>referral</p>"},
	}, nil
}
