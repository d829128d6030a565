package consumers

import (
	"context"

	"github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/internal/checkin/repository"
	"github.com/stayflow/stayflow-backend/pkg/logger"
	"github.com/stayflow/stayflow-backend/pkg/messaging"
)

// ActivityEventConsumer feeds every check-in event into the activity log
// so the ops endpoints can show what the bot has been doing without
// querying the broker.
type ActivityEventConsumer struct {
	consumer     *messaging.Consumer
	activityRepo *repository.ActivityRepository
	logger       *logger.Logger
}

// NewActivityEventConsumer creates the consumer and binds it to the
// check-in exchange
func NewActivityEventConsumer(
	rmq *messaging.RabbitMQ,
	activityRepo *repository.ActivityRepository,
	log *logger.Logger,
) (*ActivityEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "checkin-service.activity", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCheckinEvents, "checkin.#"); err != nil {
		return nil, err
	}

	c := &ActivityEventConsumer{
		consumer:     consumer,
		activityRepo: activityRepo,
		logger:       log.WithComponent("activity-consumer"),
	}

	for _, eventType := range []string{
		messaging.EventSessionStarted,
		messaging.EventSessionCancelled,
		messaging.EventSessionExpired,
		messaging.EventSessionFailed,
		messaging.EventIdentityExtracted,
		messaging.EventReservationMatched,
		messaging.EventReservationAmbiguous,
		messaging.EventGuestCheckedIn,
		messaging.EventInvoiceCreated,
		messaging.EventInvoiceDeclined,
	} {
		consumer.RegisterHandler(eventType, c.record)
	}

	return c, nil
}

// Start starts consuming messages
func (c *ActivityEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *ActivityEventConsumer) record(ctx context.Context, event *messaging.Event) error {
	entry := &domain.ActivityEntry{
		EventID:    event.ID,
		EventType:  event.Type,
		SessionID:  event.CorrelationID,
		Payload:    event.Data,
		OccurredAt: event.Timestamp,
	}

	if err := c.activityRepo.Create(ctx, entry); err != nil {
		return err
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("session_id", entry.SessionID).
		Msg("activity recorded")

	return nil
}
