// Package events publishes accepted vault operations to NATS for
// downstream consumers.
package events

import (
	"context"
	"encoding/json"

	"github.com/luxfi/log"
	"github.com/nats-io/nats.go"

	"github.com/cantonlabs/vault/pkg/vault"
)

// Subjects accepted operations are published on.
const (
	SubjectDeposit = "vault.deposit"
	SubjectRedeem  = "vault.redeem"
)

// Publisher is a vault.Sink that publishes events to NATS. Publishing is
// best-effort: failures are logged and never fail the operation.
type Publisher struct {
	nc     *nats.Conn
	logger log.Logger
}

// Connect dials NATS and returns a publisher.
func Connect(url string, logger log.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("vaultd"))
	if err != nil {
		return nil, err
	}
	logger.Info("connected to NATS", "url", url)
	return &Publisher{nc: nc, logger: logger}, nil
}

// Accepted publishes the event on its subject.
func (p *Publisher) Accepted(_ context.Context, ev vault.Event) {
	subject := SubjectDeposit
	if ev.Kind == "redeem" {
		subject = SubjectRedeem
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encode event", "error", err)
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("publish event", "subject", subject, "error", err)
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("drain NATS connection", "error", err)
	}
}
