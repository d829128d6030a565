package pms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Reservation status codes on the wire
const (
	statusConfirmed = 1
)

// Client is the property-management-system API surface the check-in flow
// needs. The PMS stays a remote black box behind this interface.
type Client interface {
	// ListArrivals returns confirmed reservations arriving inside the
	// window, sorted by arrival date.
	ListArrivals(ctx context.Context, window Window) ([]ReservationCandidate, error)

	// ListCountries returns the PMS country name -> ID table
	ListCountries(ctx context.Context) (map[string]int, error)

	// SubmitGuests registers guests on a reservation
	SubmitGuests(ctx context.Context, reservationID string, guests []Guest) (*SubmitResult, error)

	// Checkin flips the reservation to checked-in
	Checkin(ctx context.Context, reservationID string) error

	// CreateInvoice adds a draft invoice item to the reservation
	CreateInvoice(ctx context.Context, reservationID string, req *InvoiceRequest) (*DocumentRef, error)
}

// HTTPClient talks to the PMS REST API with apikey-header auth
type HTTPClient struct {
	baseURL    string
	apiKey     string
	propertyID string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPClient creates a PMS client from configuration
func NewHTTPClient(cfg *config.PMSConfig, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		propertyID: cfg.PropertyID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithComponent("pms-client"),
	}
}

// APIError carries the PMS error payload for a non-2xx response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("PMS API error %d: %s", e.StatusCode, e.Message)
}

// wireReservation is the reservation shape the API returns. Dates travel
// as unix seconds.
type wireReservation struct {
	ID               json.Number `json:"id"`
	GuestName        string      `json:"guestName"`
	ArrivalDate      int64       `json:"arrivalDate"`
	DepartureDate    int64       `json:"departureDate"`
	Status           int         `json:"status"`
	UnitName         string      `json:"unitName"`
	PricePerNight    float64     `json:"pricePerNight"`
	TotalNights      int         `json:"totalNights"`
	OTAChannelName   string      `json:"otaChannelName"`
	SalesChannelName string      `json:"salesChannelName"`
	Origin           int         `json:"origin"`
	OnlineCheckinURL string      `json:"onlineCheckinUrl"`
}

func (c *HTTPClient) ListArrivals(ctx context.Context, window Window) ([]ReservationCandidate, error) {
	params := url.Values{}
	params.Set("dateFrom", window.From.Format("2006-01-02"))
	params.Set("dateTo", window.To.Format("2006-01-02"))
	params.Set("status", "confirmed")
	params.Set("limit", "100")
	if c.propertyID != "" {
		params.Set("propertyId", c.propertyID)
	}

	var envelope struct {
		Data []wireReservation `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/reservations?"+params.Encode(), nil, &envelope); err != nil {
		return nil, err
	}

	candidates := make([]ReservationCandidate, 0, len(envelope.Data))
	for _, r := range envelope.Data {
		if r.Status != statusConfirmed {
			continue
		}
		candidates = append(candidates, ReservationCandidate{
			ReservationID:    r.ID.String(),
			GuestDisplayName: r.GuestName,
			ArrivalDate:      time.Unix(r.ArrivalDate, 0).UTC(),
			DepartureDate:    time.Unix(r.DepartureDate, 0).UTC(),
			BookingChannel:   ClassifyChannel(r.OTAChannelName, r.SalesChannelName, r.Origin),
			OnlineCheckinURL: r.OnlineCheckinURL,
			UnitName:         r.UnitName,
			PricePerNight:    r.PricePerNight,
			TotalNights:      r.TotalNights,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ArrivalDate.Before(candidates[j].ArrivalDate)
	})

	c.logger.Debug().
		Int("count", len(candidates)).
		Time("from", window.From).
		Time("to", window.To).
		Msg("arrivals listed")

	return candidates, nil
}

func (c *HTTPClient) ListCountries(ctx context.Context) (map[string]int, error) {
	var envelope struct {
		Data []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/countries", nil, &envelope); err != nil {
		return nil, err
	}

	countries := make(map[string]int, len(envelope.Data))
	for _, country := range envelope.Data {
		name := strings.TrimSpace(country.Name)
		if name != "" && country.ID != 0 {
			countries[name] = country.ID
		}
	}

	c.logger.Info().Int("count", len(countries)).Msg("countries loaded from PMS")
	return countries, nil
}

func (c *HTTPClient) SubmitGuests(ctx context.Context, reservationID string, guests []Guest) (*SubmitResult, error) {
	body := map[string]interface{}{"guests": guests}

	var result SubmitResult
	path := fmt.Sprintf("/reservations/%s/guests", reservationID)
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("reservation_id", reservationID).
		Int("submitted", len(guests)).
		Int("added", len(result.GuestsAdded)).
		Msg("guests submitted")

	return &result, nil
}

func (c *HTTPClient) Checkin(ctx context.Context, reservationID string) error {
	path := fmt.Sprintf("/reservations/%s/checkin", reservationID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

func (c *HTTPClient) CreateInvoice(ctx context.Context, reservationID string, req *InvoiceRequest) (*DocumentRef, error) {
	var ref DocumentRef
	path := fmt.Sprintf("/reservations/%s/invoices/items", reservationID)
	if err := c.do(ctx, http.MethodPost, path, req, &ref); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("reservation_id", reservationID).
		Str("invoice_id", ref.InvoiceID).
		Msg("invoice draft created")

	return &ref, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PMS request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &errBody) != nil || errBody.Message == "" {
			errBody.Message = string(raw)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Message}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode PMS response: %w", err)
	}
	return nil
}
