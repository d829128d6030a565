package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	checkindomain "github.com/stayflow/stayflow-backend/internal/checkin/domain"
	"github.com/stayflow/stayflow-backend/internal/checkin/events"
	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/mapping"
	"github.com/stayflow/stayflow-backend/internal/matching"
	"github.com/stayflow/stayflow-backend/internal/ocr"
	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/internal/session"
	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/errors"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// identityExtractor is the parsing surface behind OCR. Satisfied by
// extractor.Chain.
type identityExtractor interface {
	Extract(ctx context.Context, res *ocr.Result) (*domain.ExtractedIdentity, error)
}

// checkinRunner performs an online check-in through the property's web
// form. Satisfied by automation.HTTPRunner.
type checkinRunner interface {
	PerformCheckin(ctx context.Context, checkinURL string, guests []pms.Guest) error
}

// sessionStore persists finished session records
type sessionStore interface {
	Create(ctx context.Context, record *checkindomain.SessionRecord) error
}

// registrationStore persists guest registrations
type registrationStore interface {
	CreateBatch(ctx context.Context, registrations []*checkindomain.GuestRegistration) error
}

// Deps collects the orchestrator's collaborators
type Deps struct {
	OCR           ocr.Client
	Extractor     identityExtractor
	PMS           pms.Client
	Matcher       *matching.Matcher
	Countries     *mapping.CountryTable
	Payments      *mapping.PaymentTable
	Runner        checkinRunner
	Events        *events.CheckinEventPublisher
	Sessions      sessionStore
	Registrations registrationStore
}

// Orchestrator wires the extraction, matching and PMS actions behind the
// session state machine. Retries for external calls live here; an error
// returned to the state machine means the retries are exhausted.
type Orchestrator struct {
	deps Deps

	horizonDays   int
	retryAttempts int
	retryBackoff  time.Duration

	// invoiced tracks which sessions created an invoice, so SessionEnded
	// can tell a declined offer from a created draft.
	mu       sync.Mutex
	invoiced map[string]bool

	now    func() time.Time
	logger *logger.Logger
}

// New creates an orchestrator
func New(deps Deps, cfg *config.CheckinConfig, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		deps:          deps,
		horizonDays:   cfg.ArrivalHorizonDays,
		retryAttempts: cfg.RetryAttempts,
		retryBackoff:  cfg.RetryBackoff,
		invoiced:      make(map[string]bool),
		now:           time.Now,
		logger:        log.WithComponent("orchestrator"),
	}
}

// SessionStarted publishes the session started event
func (o *Orchestrator) SessionStarted(ctx context.Context, snapshot session.Snapshot) {
	o.deps.Events.PublishSessionStarted(ctx, snapshot)
}

// ExtractIdentity runs OCR over the photo and parses the result
func (o *Orchestrator) ExtractIdentity(ctx context.Context, image []byte) (*domain.ExtractedIdentity, error) {
	result, err := o.deps.OCR.Detect(ctx, image)
	if err != nil {
		return nil, errors.ExtractionFailed(err)
	}

	identity, err := o.deps.Extractor.Extract(ctx, result)
	if err != nil {
		return nil, err
	}

	o.deps.Events.PublishIdentityExtracted(ctx, identity)
	return identity, nil
}

// FindMatches lists upcoming arrivals and ranks them against the identity.
// An empty ranking surfaces as ErrNoMatchFound so the conversation stays
// in the collecting phase.
func (o *Orchestrator) FindMatches(ctx context.Context, identity *domain.ExtractedIdentity) (*matching.MatchResult, error) {
	today := o.today()
	window := pms.Window{
		From: today,
		To:   today.AddDate(0, 0, o.horizonDays),
	}

	var candidates []pms.ReservationCandidate
	err := o.withRetry(ctx, "list arrivals", func() error {
		var listErr error
		candidates, listErr = o.deps.PMS.ListArrivals(ctx, window)
		return listErr
	})
	if err != nil {
		return nil, err
	}

	result := o.deps.Matcher.Match(identity, candidates)
	if len(result.Ranked) == 0 {
		return nil, errors.NoMatchFound()
	}

	o.deps.Events.PublishMatchOutcome(ctx, &result)
	return &result, nil
}

// PerformCheckin registers the pending identities as guests on the
// reservation and flips its check-in status. When direct submission fails
// and the reservation carries an online check-in URL, the browser runner
// takes over as fallback.
func (o *Orchestrator) PerformCheckin(ctx context.Context, candidate pms.ReservationCandidate, identities []*domain.ExtractedIdentity) error {
	log := o.logger.WithReservationID(candidate.ReservationID)

	guests, err := o.buildGuests(identities)
	if err != nil {
		return err
	}

	err = o.withRetry(ctx, "submit guests", func() error {
		_, submitErr := o.deps.PMS.SubmitGuests(ctx, candidate.ReservationID, guests)
		return submitErr
	})
	if err == nil {
		err = o.withRetry(ctx, "check-in", func() error {
			return o.deps.PMS.Checkin(ctx, candidate.ReservationID)
		})
	}

	if err != nil {
		if candidate.OnlineCheckinURL == "" {
			return err
		}
		log.Warn().Err(err).Msg("direct check-in failed, falling back to online form")
		if runErr := o.withRetry(ctx, "online check-in form", func() error {
			return o.deps.Runner.PerformCheckin(ctx, candidate.OnlineCheckinURL, guests)
		}); runErr != nil {
			return runErr
		}
	}

	o.persistRegistrations(ctx, candidate, identities)
	o.deps.Events.PublishGuestCheckedIn(ctx, candidate, identities[0])

	log.Info().Int("guests", len(guests)).Msg("check-in completed")
	return nil
}

// CreateInvoice drafts the non-fiscalized invoice item for the stay
func (o *Orchestrator) CreateInvoice(ctx context.Context, candidate pms.ReservationCandidate) (*pms.DocumentRef, error) {
	req := o.buildInvoice(candidate)

	var ref *pms.DocumentRef
	err := o.withRetry(ctx, "create invoice", func() error {
		var createErr error
		ref, createErr = o.deps.PMS.CreateInvoice(ctx, candidate.ReservationID, req)
		return createErr
	})
	if err != nil {
		return nil, err
	}

	if sessionID, ok := session.SessionIDFromContext(ctx); ok {
		o.mu.Lock()
		o.invoiced[sessionID] = true
		o.mu.Unlock()
	}

	o.deps.Events.PublishInvoiceCreated(ctx, candidate, ref, req.PaymentType)
	return ref, nil
}

// SessionEnded records the finished session and publishes its terminal event
func (o *Orchestrator) SessionEnded(ctx context.Context, snapshot session.Snapshot) {
	record := &checkindomain.SessionRecord{
		ID:            snapshot.ID,
		UserID:        snapshot.UserID,
		State:         string(snapshot.State),
		IdentityCount: snapshot.IdentityCount,
		Expired:       snapshot.Expired,
		StartedAt:     snapshot.CreatedAt,
		EndedAt:       o.now().UTC(),
	}
	if snapshot.ConfirmedReservationID != "" {
		id := snapshot.ConfirmedReservationID
		record.ConfirmedReservationID = &id
	}

	if err := o.deps.Sessions.Create(ctx, record); err != nil {
		o.logger.Error().
			Err(err).
			Str("session_id", snapshot.ID).
			Msg("failed to persist session record")
	}

	o.mu.Lock()
	invoiced := o.invoiced[snapshot.ID]
	delete(o.invoiced, snapshot.ID)
	o.mu.Unlock()

	if snapshot.State == session.StateDone && snapshot.ConfirmedReservationID != "" && !invoiced {
		o.deps.Events.PublishInvoiceDeclined(ctx, snapshot.ConfirmedReservationID)
	}
	o.deps.Events.PublishSessionEnded(ctx, snapshot)
}

// buildGuests maps extracted identities to the PMS guest payload. The
// first identity is the primary guest; the rest are additional.
func (o *Orchestrator) buildGuests(identities []*domain.ExtractedIdentity) ([]pms.Guest, error) {
	guests := make([]pms.Guest, 0, len(identities))

	for i, identity := range identities {
		guest := pms.Guest{
			Name:           identity.FullName(),
			IsBooker:       flag(i == 0),
			IsPrimary:      flag(i == 0),
			IsAdditional:   flag(i != 0),
			GenderID:       mapping.GenderID(identity.Gender),
			DocumentNumber: identity.DocumentNumber,
			Note:           guestNote(identity),
		}

		if !identity.DateOfBirth.IsZero() {
			// Midnight UTC; the PMS shifts bare dates by its own timezone
			dob := identity.DateOfBirth
			guest.DateOfBirth = time.Date(dob.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, time.UTC).Unix()
		}

		if identity.Nationality != "" {
			countryID, err := o.deps.Countries.Map(identity.Nationality)
			if err != nil {
				return nil, err
			}
			guest.CountryID = countryID
			guest.CitizenshipCountryID = countryID
			guest.CountryOfBirthID = countryID
			guest.CountryOfResidenceID = countryID
		}

		guests = append(guests, guest)
	}

	return guests, nil
}

// buildInvoice assembles the accommodation invoice item: one line per
// night at the nightly price, 13% VAT included, payment type keyed off the
// booking channel.
func (o *Orchestrator) buildInvoice(candidate pms.ReservationCandidate) *pms.InvoiceRequest {
	nights := candidate.TotalNights
	if nights == 0 {
		nights = int(candidate.DepartureDate.Sub(candidate.ArrivalDate).Hours() / 24)
	}
	if nights < 1 {
		nights = 1
	}

	description := fmt.Sprintf("Smještaj %s (%s - %s)",
		candidate.UnitName,
		candidate.ArrivalDate.Format("02.01."),
		candidate.DepartureDate.Format("02.01."),
	)

	return &pms.InvoiceRequest{
		Description:     description,
		Price:           candidate.PricePerNight,
		Quantity:        nights,
		DiscountPercent: 0,
		VATIncluded:     "Y",
		Taxes:           []pms.Tax{{Label: "PDV", Rate: 13}},
		PaymentType:     o.deps.Payments.Map(candidate.BookingChannel),
		Note:            "PDV uračunat u cijenu. Račun nije fiskaliziran.",
	}
}

func (o *Orchestrator) persistRegistrations(ctx context.Context, candidate pms.ReservationCandidate, identities []*domain.ExtractedIdentity) {
	sessionID, _ := session.SessionIDFromContext(ctx)
	now := o.now().UTC()

	registrations := make([]*checkindomain.GuestRegistration, 0, len(identities))
	for _, identity := range identities {
		registrations = append(registrations, &checkindomain.GuestRegistration{
			SessionID:         sessionID,
			ReservationID:     candidate.ReservationID,
			GuestName:         identity.FullName(),
			Nationality:       identity.Nationality,
			SourceFormat:      string(identity.SourceFormat),
			Confidence:        identity.Confidence,
			NeedsManualReview: identity.NeedsManualReview,
			CheckedInAt:       now,
		})
	}

	// The PMS already holds the registrations; a local write failure is
	// logged, not surfaced to the guest flow.
	if err := o.deps.Registrations.CreateBatch(ctx, registrations); err != nil {
		o.logger.Error().
			Err(err).
			Str("reservation_id", candidate.ReservationID).
			Msg("failed to persist guest registrations")
	}
}

// withRetry runs fn with bounded retries and doubling backoff. Client-side
// PMS errors (4xx) are not retried; the request will not get better.
func (o *Orchestrator) withRetry(ctx context.Context, action string, fn func() error) error {
	backoff := o.retryBackoff
	var err error

	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		var apiErr *pms.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			break
		}

		if attempt < o.retryAttempts {
			o.logger.Warn().
				Err(err).
				Str("action", action).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("external action failed, retrying")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return errors.ExternalActionFailed(action, ctx.Err())
			}
			backoff *= 2
		}
	}

	return errors.ExternalActionFailed(action, err)
}

func (o *Orchestrator) today() time.Time {
	now := o.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func guestNote(identity *domain.ExtractedIdentity) string {
	var parts []string
	if identity.DocumentType != "" {
		parts = append(parts, "Doc: "+identity.DocumentType)
	}
	if !identity.ExpiryDate.IsZero() {
		parts = append(parts, "Exp: "+identity.ExpiryDate.Format("02.01.2006"))
	}
	if identity.NeedsManualReview {
		parts = append(parts, "MRZ checksum mismatch, verify manually")
	}
	return strings.Join(parts, " | ")
}
