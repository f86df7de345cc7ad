// Package events announces finished builds on a NATS subject.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
)

// BuildCompleted is the payload published after every build.
type BuildCompleted struct {
	BuildID      string    `json:"build_id"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	DurationMS   int64     `json:"duration_ms"`
	PagesWritten int       `json:"pages_written"`
	Targets      []string  `json:"targets"`
	ContentHash  string    `json:"content_hash"`
	Error        string    `json:"error,omitempty"`
}

// FromManifest summarises m.
func FromManifest(m *manifest.BuildManifest) BuildCompleted {
	ev := BuildCompleted{
		BuildID:      m.ID,
		Timestamp:    m.Timestamp,
		Status:       m.Status,
		DurationMS:   m.DurationMS,
		PagesWritten: m.PagesWritten(),
		ContentHash:  m.ContentHash(),
		Error:        m.Error,
	}
	for _, t := range m.Targets {
		ev.Targets = append(ev.Targets, t.Name)
	}
	return ev
}

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Publisher sends BuildCompleted events.
type Publisher struct {
	conn    Conn
	subject string
	timeout time.Duration
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("documentation-builder"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Debug("NATS publisher connected", "url", url, "subject", subject)
	return NewPublisher(conn, subject), nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject, timeout: 5 * time.Second}
}

// PublishManifest publishes the summary of m and waits for the server to
// acknowledge the flush.
func (p *Publisher) PublishManifest(m *manifest.BuildManifest) error {
	data, err := json.Marshal(FromManifest(m))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := p.conn.FlushTimeout(p.timeout); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}

// Record implements the build report sink.
func (p *Publisher) Record(_ context.Context, m *manifest.BuildManifest) error {
	return p.PublishManifest(m)
}

// Close closes the underlying connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
