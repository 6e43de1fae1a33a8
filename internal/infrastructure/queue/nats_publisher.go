package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/errs"
	"reviewflow/internal/ports"
)

// jetStream is the subset of nats.JetStreamContext the publisher needs.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// NATSPublisher publishes work items to a file-backed JetStream work queue.
type NATSPublisher struct {
	js      jetStream
	subject string
}

var _ ports.JobPublisher = (*NATSPublisher)(nil)

// NewNATSPublisher ensures stream exists with subject bound to it.
func NewNATSPublisher(ctx context.Context, js jetStream, stream string, subject string) (*NATSPublisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if js == nil {
		return nil, errors.New("jetstream context is required")
	}
	stream = strings.TrimSpace(stream)
	subject = strings.TrimSpace(subject)
	if stream == "" || subject == "" {
		return nil, errors.New("stream and subject are required")
	}

	if _, err := js.StreamInfo(stream, nats.Context(ctx)); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return nil, errs.Wrapf(err, "lookup stream %s", stream)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:      stream,
			Subjects:  []string{subject},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.FileStorage,
		}, nats.Context(ctx)); err != nil {
			return nil, errs.Wrapf(err, "create stream %s", stream)
		}
	}

	return &NATSPublisher{js: js, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, item review.WorkItem) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	raw, err := json.Marshal(item)
	if err != nil {
		return errs.Wrap(err, "encode work item")
	}
	if _, err := p.js.Publish(p.subject, raw, nats.Context(ctx)); err != nil {
		return errs.Wrapf(err, "publish %s", p.subject)
	}
	return nil
}
