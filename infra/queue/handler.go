package queue

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/enrich"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/process"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/rank"
)

// Handler routes one JobRecord to the service that owns its queue,
// decoding the payload into that queue's concrete type first. This plays
// the role the original worker Handler's job-type switch played, narrowed
// to the pipeline's three queues.
type Handler struct {
	emailProcessor *process.EmailProcessor
	enrichClient   *enrich.Client
	ranker         *rank.Ranker
}

func NewHandler(emailProcessor *process.EmailProcessor, enrichClient *enrich.Client, ranker *rank.Ranker) *Handler {
	return &Handler{emailProcessor: emailProcessor, enrichClient: enrichClient, ranker: ranker}
}

func (h *Handler) Handle(ctx context.Context, record *domain.JobRecord) error {
	switch record.Queue {
	case domain.QueueEmailProcess:
		var payload domain.EmailProcessPayload
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return fmt.Errorf("decode email-process payload: %w", err)
		}
		return h.emailProcessor.ProcessMessage(ctx, payload)

	case domain.QueueEnrich:
		var payload domain.EnrichPayload
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return fmt.Errorf("decode enrich payload: %w", err)
		}
		return h.enrichClient.ProcessEnrich(ctx, payload)

	case domain.QueueRankCompute:
		var payload domain.RankComputePayload
		if err := json.Unmarshal(record.Payload, &payload); err != nil {
			return fmt.Errorf("decode rank-compute payload: %w", err)
		}
		return h.ranker.RankLink(ctx, payload)

	default:
		return fmt.Errorf("queue: no handler registered for queue %q", record.Queue)
	}
}
