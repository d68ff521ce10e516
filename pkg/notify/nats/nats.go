package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/notify"
)

type (
	Publisher struct {
		conn *nats.Conn
		l    *log.Logger
	}
	Option func(*Publisher)
)

var _ notify.Publisher = (*Publisher)(nil)

// Connect creates a publisher with its own connection to the nats server
func Connect(url string, opts ...Option) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("rally-manager"))
	if err != nil {
		return nil, err
	}
	return NewPublisher(conn, opts...), nil
}

func NewPublisher(conn *nats.Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn: conn,
		l:    log.Default().Named("nats"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (p *Publisher) PublishRaceSettled(
	ctx context.Context,
	msg *notify.RaceSettled,
) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	subject := notify.RaceSettledSubject(msg.RaceID)
	p.l.Debug("publishing",
		log.String("subject", subject),
		log.String("runID", msg.RunID.String()))
	return p.conn.Publish(subject, data)
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.l.Warn("drain failed", log.ErrorField(err))
		p.conn.Close()
	}
}
