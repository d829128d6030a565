package events

import (
	"context"
	"time"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/logger"
	"github.com/stayflow/stayflow-backend/pkg/messaging"
)

// Publisher is the wire-level publish surface. Satisfied by
// messaging.Publisher; tests substitute a recorder.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// CheckinEventPublisher publishes check-in lifecycle events. Publishing is
// best-effort: a broker hiccup is logged and never fails the conversation.
type CheckinEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewCheckinEventPublisher creates a publisher bound to the check-in exchange
func NewCheckinEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*CheckinEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeCheckinEvents, "checkin-service", log)
	if err != nil {
		return nil, err
	}
	return NewCheckinEventPublisherFrom(publisher, log), nil
}

// NewCheckinEventPublisherFrom wraps an existing publish surface
func NewCheckinEventPublisherFrom(p Publisher, log *logger.Logger) *CheckinEventPublisher {
	return &CheckinEventPublisher{
		publisher: p,
		logger:    log.WithComponent("checkin-events"),
	}
}

// PublishSessionStarted publishes a session started event
func (p *CheckinEventPublisher) PublishSessionStarted(ctx context.Context, snapshot session.Snapshot) {
	data := messaging.SessionStartedEvent{
		SessionID: snapshot.ID,
		UserID:    snapshot.UserID,
	}
	p.publish(ctx, messaging.EventSessionStarted, snapshot.ID, data)
}

// PublishSessionEnded publishes the terminal event matching the snapshot
// state. Completed sessions already produced their own domain events, so
// done publishes nothing here.
func (p *CheckinEventPublisher) PublishSessionEnded(ctx context.Context, snapshot session.Snapshot) {
	switch snapshot.State {
	case session.StateCancelled:
		if snapshot.Expired {
			data := messaging.SessionExpiredEvent{
				SessionID: snapshot.ID,
				UserID:    snapshot.UserID,
				State:     string(snapshot.State),
				IdleFor:   time.Since(snapshot.LastActivityAt),
			}
			p.publish(ctx, messaging.EventSessionExpired, snapshot.ID, data)
			return
		}
		data := messaging.SessionCancelledEvent{
			SessionID: snapshot.ID,
			UserID:    snapshot.UserID,
			State:     string(snapshot.State),
		}
		p.publish(ctx, messaging.EventSessionCancelled, snapshot.ID, data)

	case session.StateFailed:
		data := messaging.SessionFailedEvent{
			SessionID: snapshot.ID,
			UserID:    snapshot.UserID,
			Reason:    "external action failed after retries",
		}
		p.publish(ctx, messaging.EventSessionFailed, snapshot.ID, data)
	}
}

// PublishIdentityExtracted publishes an extraction outcome. Names and
// document numbers never leave the session.
func (p *CheckinEventPublisher) PublishIdentityExtracted(ctx context.Context, identity *domain.ExtractedIdentity) {
	sessionID, _ := session.SessionIDFromContext(ctx)
	userID, _ := session.UserIDFromContext(ctx)

	data := messaging.IdentityExtractedEvent{
		SessionID:         sessionID,
		UserID:            userID,
		SourceFormat:      string(identity.SourceFormat),
		Confidence:        identity.Confidence,
		NeedsManualReview: identity.NeedsManualReview,
		Nationality:       identity.Nationality,
	}
	p.publish(ctx, messaging.EventIdentityExtracted, sessionID, data)
}

// PublishMatchOutcome publishes matched or ambiguous depending on how many
// candidates share the top rank
func (p *CheckinEventPublisher) PublishMatchOutcome(ctx context.Context, result *matching.MatchResult) {
	sessionID, _ := session.SessionIDFromContext(ctx)

	best := result.Best()
	if len(best) == 0 {
		return
	}

	if len(best) == 1 {
		data := messaging.ReservationMatchedEvent{
			SessionID:     sessionID,
			ReservationID: best[0].Candidate.ReservationID,
			Score:         best[0].Score,
			Auto:          len(result.Ranked) == 1,
		}
		p.publish(ctx, messaging.EventReservationMatched, sessionID, data)
		return
	}

	ids := make([]string, 0, len(best))
	for _, rc := range best {
		ids = append(ids, rc.Candidate.ReservationID)
	}
	data := messaging.ReservationAmbiguousEvent{
		SessionID:      sessionID,
		ReservationIDs: ids,
		Score:          best[0].Score,
	}
	p.publish(ctx, messaging.EventReservationAmbiguous, sessionID, data)
}

// PublishGuestCheckedIn publishes a completed check-in
func (p *CheckinEventPublisher) PublishGuestCheckedIn(ctx context.Context, candidate pms.ReservationCandidate, primary *domain.ExtractedIdentity) {
	sessionID, _ := session.SessionIDFromContext(ctx)

	data := messaging.GuestCheckedInEvent{
		SessionID:     sessionID,
		ReservationID: candidate.ReservationID,
		GuestName:     primary.FullName(),
		Nationality:   primary.Nationality,
		ArrivalDate:   candidate.ArrivalDate,
		UnitName:      candidate.UnitName,
	}
	p.publish(ctx, messaging.EventGuestCheckedIn, sessionID, data)
}

// PublishInvoiceCreated publishes a created invoice draft
func (p *CheckinEventPublisher) PublishInvoiceCreated(ctx context.Context, candidate pms.ReservationCandidate, ref *pms.DocumentRef, paymentType string) {
	sessionID, _ := session.SessionIDFromContext(ctx)

	data := messaging.InvoiceCreatedEvent{
		SessionID:     sessionID,
		ReservationID: candidate.ReservationID,
		InvoiceID:     ref.InvoiceID,
		Amount:        ref.Total,
		Currency:      "EUR",
		PaymentType:   paymentType,
	}
	p.publish(ctx, messaging.EventInvoiceCreated, sessionID, data)
}

// PublishInvoiceDeclined publishes a declined invoice offer
func (p *CheckinEventPublisher) PublishInvoiceDeclined(ctx context.Context, reservationID string) {
	sessionID, _ := session.SessionIDFromContext(ctx)

	data := messaging.InvoiceDeclinedEvent{
		SessionID:     sessionID,
		ReservationID: reservationID,
	}
	p.publish(ctx, messaging.EventInvoiceDeclined, sessionID, data)
}

func (p *CheckinEventPublisher) publish(ctx context.Context, eventType, correlationID string, data interface{}) {
	if correlationID != "" {
		ctx = messaging.WithCorrelationID(ctx, correlationID)
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().
			Err(err).
			Str("event_type", eventType).
			Msg("failed to publish check-in event")
	}
}
