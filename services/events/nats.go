// Package eventsvc publishes lead events on NATS.
package eventsvc

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
)

// SubjectPrefix prefixes every lead event subject: `crm.leads.created`, `crm.leads.assigned`, ...
const SubjectPrefix = "crm.leads."

// publishConn is the part of *nats.Conn used to publish.
type publishConn interface {
	Publish(subj string, data []byte) error
}

type NATSPublisher struct {
	conn   publishConn
	nc     *nats.Conn // nil when built on a bare publishConn
	logger core.Logger
}

var _ lead.Publisher = (*NATSPublisher)(nil)

// Connect dials the NATS server at url. The connection reconnects on its own while the app runs.
func Connect(url, name string, logger core.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected: "+err.Error(), err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected to " + c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to nats")
	}
	return &NATSPublisher{conn: nc, nc: nc, logger: logger}, nil
}

func newPublisher(conn publishConn, logger core.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

// Subject returns the subject an event type is published on.
func Subject(eventType string) string {
	return SubjectPrefix + strings.TrimPrefix(eventType, "lead.")
}

func (p *NATSPublisher) Publish(ctx context.Context, evt lead.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(p.conn.Publish(Subject(evt.Type), data), "publishing event")
}

// Close flushes pending events and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("draining nats connection: "+err.Error(), err)
		p.nc.Close()
	}
}
