package sink

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/shahidirfan100/Reddit-Comments-Scraper/engine/domain"
	"github.com/shahidirfan100/Reddit-Comments-Scraper/pkg/natsutil"
)

// NATS publishes one message per record on a subject. Close flushes the
// connection's outbound buffer so nothing sits unsent; the connection
// itself belongs to the caller.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func NewNATS(nc *nats.Conn, subject string) *NATS {
	return &NATS{nc: nc, subject: subject}
}

func (s *NATS) Append(ctx context.Context, records []domain.FlatComment) error {
	for _, r := range records {
		if err := natsutil.Publish(ctx, s.nc, s.subject, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *NATS) Close() error { return s.nc.Flush() }
