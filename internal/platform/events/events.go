// Package events publishes KPI domain events to NATS.
package events

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

const SubjectPrefix = "apar."

// Envelope wraps every published payload.
type Envelope struct {
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("apar"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "err", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(subject string, data any) error {
	payload, err := json.Marshal(Envelope{Subject: subject, OccurredAt: time.Now().UTC(), Data: data})
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectPrefix+subject, payload)
}

func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		slog.Warn("nats drain failed", "err", err)
		p.conn.Close()
	}
}

// LogPublisher writes events to the structured log when no broker is
// configured.
type LogPublisher struct{}

func (LogPublisher) Publish(subject string, data any) error {
	slog.Debug("kpi event", "subject", subject, "data", data)
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

func (r *Recorder) Publish(subject string, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Envelope{Subject: subject, OccurredAt: time.Now().UTC(), Data: data})
	return nil
}

func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}

// Subjects returns published subjects in order.
func (r *Recorder) Subjects() []string {
	events := r.Events()
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Subject)
	}
	return out
}
