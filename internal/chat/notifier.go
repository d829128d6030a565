package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/errors"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Button callback payloads. The handler parses these back into session
// events, so the notifier and handler share the vocabulary.
const (
	dataContinue     = "continue"
	dataReject       = "reject"
	dataInvoiceYes   = "invoice_yes"
	dataInvoiceNo    = "invoice_no"
	dataChoosePrefix = "choose:"
)

// Notifier renders session outcomes as chat messages. Send failures are
// logged and swallowed; the conversation state must never depend on the
// messenger being up.
type Notifier struct {
	transport Transport
	logger    *logger.Logger
}

// NewNotifier creates a notifier over the given transport
func NewNotifier(transport Transport, log *logger.Logger) *Notifier {
	return &Notifier{
		transport: transport,
		logger:    log.WithComponent("chat-notifier"),
	}
}

func (n *Notifier) PromptResend(ctx context.Context, userID string) {
	n.text(ctx, userID, "I could not read that document. Please send a sharper photo of the ID page, or press Continue when all guests are added.")
}

func (n *Notifier) IdentityAdded(ctx context.Context, userID string, identity *domain.ExtractedIdentity, total int) {
	msg := fmt.Sprintf("Got it: %s (guest %d).", identity.FullName(), total)
	if identity.NeedsManualReview {
		msg += " The document checksum did not verify, please double-check the details in the PMS."
	}
	msg += " Send the next ID photo or press Continue."

	n.choices(ctx, userID, msg, []Choice{
		{Label: "Continue", Data: dataContinue},
	})
}

func (n *Notifier) PresentMatches(ctx context.Context, userID string, result *matching.MatchResult) {
	var b strings.Builder
	if result.IsAmbiguous() {
		b.WriteString("Several reservations match equally well. Which one is it?\n")
	} else {
		b.WriteString("Found matching reservations:\n")
	}

	choices := make([]Choice, 0, len(result.Ranked)+1)
	for i, rc := range result.Ranked {
		c := rc.Candidate
		fmt.Fprintf(&b, "%d. %s, %s, arriving %s (%.0f%% match)\n",
			i+1, c.GuestDisplayName, c.UnitName, c.ArrivalDate.Format("02.01."), rc.Score*100)
		choices = append(choices, Choice{
			Label: fmt.Sprintf("%d. %s", i+1, c.GuestDisplayName),
			Data:  dataChoosePrefix + c.ReservationID,
		})
	}
	choices = append(choices, Choice{Label: "None of these", Data: dataReject})

	n.choices(ctx, userID, b.String(), choices)
}

func (n *Notifier) TransientError(ctx context.Context, userID string, err error) {
	msg := "Something went wrong, please try again."

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "NO_MATCH_FOUND":
			msg = "No upcoming reservation matches this guest. Check the name or add another document photo."
		case "UNMAPPED_COUNTRY":
			msg = appErr.Message + ". Register this guest manually in the PMS."
		case "EXTERNAL_ACTION_FAILED":
			msg = "The property system is not responding. " + appErr.Message + "."
		}
	}

	n.text(ctx, userID, msg)
}

func (n *Notifier) CheckinCompleted(ctx context.Context, userID, reservationID string) {
	n.choices(ctx, userID,
		"Guests registered and the reservation is checked in. Create the invoice draft?",
		[]Choice{
			{Label: "Create invoice", Data: dataInvoiceYes},
			{Label: "Skip", Data: dataInvoiceNo},
		})
}

func (n *Notifier) InvoiceCreated(ctx context.Context, userID string, ref *pms.DocumentRef) {
	msg := "Invoice draft created"
	if ref.Number != "" {
		msg += " (" + ref.Number + ")"
	}
	if ref.Total > 0 {
		msg += fmt.Sprintf(", total %.2f EUR", ref.Total)
	}
	msg += ". Finalize it in the PMS."
	n.text(ctx, userID, msg)
}

func (n *Notifier) SessionClosed(ctx context.Context, userID string, state session.State) {
	switch state {
	case session.StateDone:
		n.text(ctx, userID, "All done. Send a photo any time to start the next check-in.")
	case session.StateCancelled:
		n.text(ctx, userID, "Check-in cancelled. Send a photo to start over.")
	case session.StateFailed:
		n.text(ctx, userID, "The check-in could not be completed. Finish it manually in the PMS, then send a photo to start the next one.")
	}
}

func (n *Notifier) text(ctx context.Context, userID, msg string) {
	if err := n.transport.SendText(ctx, userID, msg); err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Msg("failed to send chat message")
	}
}

func (n *Notifier) choices(ctx context.Context, userID, msg string, choices []Choice) {
	if err := n.transport.SendChoices(ctx, userID, msg, choices); err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Msg("failed to send chat message")
	}
}
