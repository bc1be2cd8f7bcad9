package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
)

// Job types accepted on the subscription.
const (
	JobTypeRefresh     = "aqi_refresh"
	JobTypeHealthCheck = "health_check"
)

// ErrUnknownJobType is returned for messages with an unrecognised job type.
var ErrUnknownJobType = errors.New("unknown job type")

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// RefreshMessage is the body of a worker job. ZipCodes, Start and End are
// optional on aqi_refresh and fall back to the job's configuration.
type RefreshMessage struct {
	JobType  string   `json:"job_type"`
	ZipCodes []string `json:"zip_codes,omitempty"`
	Start    string   `json:"start,omitempty"`
	End      string   `json:"end,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A refresh can take minutes; keep leases alive and process one at a time.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 15 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// NewMessageHandler creates a handler without a Pub/Sub client. Only
// HandleMessage may be used on it.
func NewMessageHandler(job *RefreshJob, logger zerolog.Logger) *PubSubHandler {
	return &PubSubHandler{refreshJob: job, logger: logger}
}

// Start processes Pub/Sub messages until ctx is cancelled. Receive errors
// restart the stream with exponential backoff.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	receive := func() error {
		err := h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
			h.receive(ctx, msg)
		})
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("receive stream ended")
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry until cancelled
	notify := func(err error, wait time.Duration) {
		h.logger.Warn().Err(err).Dur("retry_in", wait).Msg("pubsub receive failed")
	}

	err := backoff.RetryNotify(receive, backoff.WithContext(b, ctx), notify)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

func (h *PubSubHandler) receive(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.HandleMessage(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType), isMalformed(err):
		// Redelivery cannot fix these.
		logger.Warn().Err(err).Msg("dropping message")
		msg.Ack()
	default:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
	}
}

// MalformedMessageError reports a message body that could not be parsed.
type MalformedMessageError struct {
	Err error
}

func (e *MalformedMessageError) Error() string { return "malformed message: " + e.Err.Error() }

func (e *MalformedMessageError) Unwrap() error { return e.Err }

func isMalformed(err error) bool {
	var m *MalformedMessageError
	return errors.As(err, &m)
}

// HandleMessage parses and runs one job.
func (h *PubSubHandler) HandleMessage(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return &MalformedMessageError{Err: err}
	}

	switch msg.JobType {
	case JobTypeRefresh:
		return h.handleRefresh(ctx, msg)
	case JobTypeHealthCheck:
		return h.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

func (h *PubSubHandler) handleRefresh(ctx context.Context, msg RefreshMessage) error {
	req, err := h.refreshRequest(msg)
	if err != nil {
		return &MalformedMessageError{Err: err}
	}

	_, err = h.refreshJob.RunRequest(ctx, req)
	return err
}

// refreshRequest overlays the message's selection on the job defaults.
func (h *PubSubHandler) refreshRequest(msg RefreshMessage) (aggregate.Request, error) {
	cfg := h.refreshJob.Config()
	if len(msg.ZipCodes) > 0 {
		cfg.ZipCodes = msg.ZipCodes
	}

	locations, err := cfg.Locations()
	if err != nil {
		return aggregate.Request{}, err
	}
	req := aggregate.Request{Locations: locations}
	req.Start, req.End = cfg.Window(h.refreshJob.now())

	if msg.Start != "" {
		if req.Start, err = airquality.ParseDate(msg.Start); err != nil {
			return aggregate.Request{}, fmt.Errorf("start: %w", err)
		}
		req.End = req.Start
	}
	if msg.End != "" {
		if req.End, err = airquality.ParseDate(msg.End); err != nil {
			return aggregate.Request{}, fmt.Errorf("end: %w", err)
		}
	}

	if err := aggregate.ValidateRequest(req, cfg.Limits); err != nil {
		return aggregate.Request{}, err
	}
	return req, nil
}

// handleHealthCheck fetches yesterday for the first configured location to
// verify upstream connectivity.
func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	cfg := h.refreshJob.Config()
	locations, err := cfg.Locations()
	if err != nil {
		return err
	}
	if len(locations) == 0 {
		return errors.New("health check: no locations configured")
	}

	cfg.Days = 1
	start, end := cfg.Window(h.refreshJob.now())
	req := aggregate.Request{Locations: locations[:1], Start: start, End: end}

	result, err := h.refreshJob.RunRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	h.logger.Debug().Int("observations", len(result.Observations)).Msg("health check passed")
	return nil
}
