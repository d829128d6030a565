package pms

import "time"

// Channel classifies where a booking came from
type Channel string

const (
	ChannelDirect Channel = "direct"
	ChannelOTA    Channel = "ota"
)

// ReservationCandidate is a read-only snapshot of one upcoming reservation,
// fetched per matching attempt and never mutated locally.
type ReservationCandidate struct {
	ReservationID    string    `json:"reservation_id"`
	GuestDisplayName string    `json:"guest_display_name"`
	ArrivalDate      time.Time `json:"arrival_date"`
	DepartureDate    time.Time `json:"departure_date"`
	BookingChannel   Channel   `json:"booking_channel"`
	OnlineCheckinURL string    `json:"online_checkin_url,omitempty"`
	UnitName         string    `json:"unit_name,omitempty"`
	PricePerNight    float64   `json:"price_per_night,omitempty"`
	TotalNights      int       `json:"total_nights,omitempty"`
}

// Window bounds an arrivals listing, date precision, both ends inclusive
type Window struct {
	From time.Time
	To   time.Time
}

// Guest is the registration payload for one guest on a reservation,
// in the upstream wire format. DateOfBirth is a UTC-midnight unix
// timestamp; the API interprets bare dates in its own timezone and
// shifts them by a day otherwise. The flag triple marks the first guest
// as primary and the rest as additional.
type Guest struct {
	Name                 string `json:"name"`
	IsBooker             string `json:"isBooker"`
	IsPrimary            string `json:"isPrimary"`
	IsAdditional         string `json:"isAdditional"`
	DateOfBirth          int64  `json:"dateOfBirth,omitempty"`
	GenderID             int    `json:"genderId,omitempty"`
	CountryID            int    `json:"countryId,omitempty"`
	CitizenshipCountryID int    `json:"citizenshipCountryId,omitempty"`
	CountryOfBirthID     int    `json:"countryOfBirthId,omitempty"`
	CountryOfResidenceID int    `json:"countryOfResidenceId,omitempty"`
	DocumentNumber       string `json:"documentNumber,omitempty"`
	Note                 string `json:"note,omitempty"`
}

// SubmitResult reports which guests the API accepted
type SubmitResult struct {
	GuestsAdded []string `json:"guestAdded"`
	Messages    []string `json:"messages"`
}

// Tax is one tax line on an invoice item
type Tax struct {
	Label string  `json:"label"`
	Rate  float64 `json:"rate"`
}

// InvoiceRequest describes a non-fiscalized invoice draft for a stay.
// The draft is finalized manually in the PMS; Note carries the mandatory
// tax-exemption text.
type InvoiceRequest struct {
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	DiscountPercent float64 `json:"discountPercent"`
	VATIncluded     string  `json:"vatIncluded"`
	Taxes           []Tax   `json:"taxes"`
	PaymentType     string  `json:"paymentType,omitempty"`
	Note            string  `json:"note,omitempty"`
}

// DocumentRef is the opaque handle the PMS returns for a created invoice
type DocumentRef struct {
	InvoiceID string  `json:"id"`
	Number    string  `json:"number,omitempty"`
	Total     float64 `json:"total,omitempty"`
}
