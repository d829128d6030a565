package pms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *pms.HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return pms.NewHTTPClient(&config.PMSConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		PropertyID: "42",
		Timeout:    5 * time.Second,
	}, logger.New("test", "development"))
}

func TestHTTPClient_ListArrivals(t *testing.T) {
	arrival := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Equal(t, "confirmed", r.URL.Query().Get("status"))
		assert.Equal(t, "42", r.URL.Query().Get("propertyId"))
		assert.Equal(t, "2026-08-31", r.URL.Query().Get("dateFrom"))
		assert.Equal(t, "2026-09-05", r.URL.Query().Get("dateTo"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"id":          1002,
					"guestName":   "Ana Horvat",
					"arrivalDate": arrival.Add(48 * time.Hour).Unix(),
					"status":      1,
					"origin":      2,
				},
				{
					"id":             1001,
					"guestName":      "John Smith",
					"arrivalDate":    arrival.Unix(),
					"departureDate":  arrival.Add(72 * time.Hour).Unix(),
					"status":         1,
					"unitName":       "Sunset",
					"pricePerNight":  60.0,
					"totalNights":    3,
					"otaChannelName": "",
					"origin":         1,
				},
				{
					"id":          1003,
					"guestName":   "Cancelled Guest",
					"arrivalDate": arrival.Unix(),
					"status":      3,
				},
			},
		})
	})

	window := pms.Window{
		From: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
	}
	candidates, err := client.ListArrivals(context.Background(), window)
	require.NoError(t, err)

	// Cancelled reservation dropped, remaining sorted by arrival
	require.Len(t, candidates, 2)
	assert.Equal(t, "1001", candidates[0].ReservationID)
	assert.Equal(t, "John Smith", candidates[0].GuestDisplayName)
	assert.Equal(t, pms.ChannelDirect, candidates[0].BookingChannel)
	assert.Equal(t, "Sunset", candidates[0].UnitName)
	assert.Equal(t, 3, candidates[0].TotalNights)
	assert.Equal(t, "1002", candidates[1].ReservationID)
	assert.Equal(t, pms.ChannelOTA, candidates[1].BookingChannel)
}

func TestHTTPClient_ListCountries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/countries", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"id": 53, "name": "Croatia"},
				{"id": 81, "name": "Germany"},
				{"id": 0, "name": "Broken"},
			},
		})
	})

	countries, err := client.ListCountries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Croatia": 53, "Germany": 81}, countries)
}

func TestHTTPClient_SubmitGuests(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reservations/1001/guests", r.URL.Path)

		var body struct {
			Guests []pms.Guest `json:"guests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Guests, 2)
		assert.Equal(t, "Y", body.Guests[0].IsPrimary)
		assert.Equal(t, "Y", body.Guests[1].IsAdditional)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"guestAdded": []string{"John Smith", "Jane Smith"},
		})
	})

	result, err := client.SubmitGuests(context.Background(), "1001", []pms.Guest{
		{Name: "John Smith", IsBooker: "N", IsPrimary: "Y", IsAdditional: "N"},
		{Name: "Jane Smith", IsBooker: "N", IsPrimary: "N", IsAdditional: "Y"},
	})
	require.NoError(t, err)
	assert.Len(t, result.GuestsAdded, 2)
}

func TestHTTPClient_Checkin(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.Checkin(context.Background(), "1001"))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/reservations/1001/checkin", gotPath)
}

func TestHTTPClient_CreateInvoice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reservations/1001/invoices/items", r.URL.Path)

		var req pms.InvoiceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Y", req.VATIncluded)
		require.Len(t, req.Taxes, 1)
		assert.Equal(t, 13.0, req.Taxes[0].Rate)

		json.NewEncoder(w).Encode(pms.DocumentRef{InvoiceID: "inv-7", Total: 180})
	})

	ref, err := client.CreateInvoice(context.Background(), "1001", &pms.InvoiceRequest{
		Description: "Smještaj Sunset (02.09. - 05.09.)",
		Price:       60,
		Quantity:    3,
		VATIncluded: "Y",
		Taxes:       []pms.Tax{{Label: "PDV", Rate: 13}},
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-7", ref.InvoiceID)
}

func TestHTTPClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "guest already registered"})
	})

	err := client.Checkin(context.Background(), "1001")
	require.Error(t, err)

	var apiErr *pms.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "guest already registered", apiErr.Message)
}
