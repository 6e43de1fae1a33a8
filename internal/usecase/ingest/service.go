package ingest

import (
	"errors"

	"reviewflow/internal/domain/review"
	"reviewflow/internal/ports"
)

const (
	DefaultLogsLimit    = 50
	DefaultReviewsLimit = 20
	MaxPageSize         = 200
)

// Service runs the webhook ingestion pipeline and the read-side queries.
type Service struct {
	repo      ports.ReviewRepository
	uow       ports.UnitOfWork
	publisher ports.JobPublisher
	secret    string
}

type Options struct {
	WebhookSecret string
}

// NewService wires the pipeline. The secret must be non-empty; without it
// no delivery could ever verify.
func NewService(repo ports.ReviewRepository, uow ports.UnitOfWork, publisher ports.JobPublisher, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errors.New("review repository is required")
	}
	if uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if publisher == nil {
		return nil, errors.New("job publisher is required")
	}
	if opts.WebhookSecret == "" {
		return nil, errors.New("webhook secret is required")
	}

	return &Service{
		repo:      repo,
		uow:       uow,
		publisher: publisher,
		secret:    opts.WebhookSecret,
	}, nil
}

// Delivery is one inbound webhook request as received on the wire.
type Delivery struct {
	Body       []byte
	Signature  string
	EventType  string
	DeliveryID string
}

type OutcomeStatus string

const (
	OutcomeIgnored OutcomeStatus = "ignored"
	OutcomePong    OutcomeStatus = "pong"
	OutcomeClosed  OutcomeStatus = "closed"
	OutcomeQueued  OutcomeStatus = "queued"
)

type Outcome struct {
	Status OutcomeStatus
	Reason string
	TaskID uint64
	Job    *review.WorkItem
}

// ClampLimit applies the read-side paging policy.
func ClampLimit(limit int, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
