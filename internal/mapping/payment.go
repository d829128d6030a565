package mapping

import (
	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/pms"
)

// PMS payment type labels. Direct bookings pay at the desk; channel
// bookings are settled through the channel's transaction account.
const (
	PaymentCash               = "Gotovina"
	PaymentTransactionAccount = "Transakcijski račun"
)

// PaymentTable maps a booking channel to a payment type code. Total over
// the two channel values; unknown input falls back to cash, matching the
// desk default.
type PaymentTable struct{}

func NewPaymentTable() *PaymentTable {
	return &PaymentTable{}
}

// Map returns the payment type for a booking channel
func (t *PaymentTable) Map(channel pms.Channel) string {
	if channel == pms.ChannelOTA {
		return PaymentTransactionAccount
	}
	return PaymentCash
}

// ClassifyChannel decides direct vs OTA from the raw reservation fields:
// origin above 1 means a channel booking, and the channel names catch
// manual entries the host labeled after the fact.
func ClassifyChannel(otaChannelName, salesChannelName string, origin int) pms.Channel {
	return pms.ClassifyChannel(otaChannelName, salesChannelName, origin)
}

// PMS gender IDs: 1 is female, 2 is male
const (
	GenderIDFemale = 1
	GenderIDMale   = 2
)

// GenderID maps a document gender to the PMS gender ID. Unspecified maps
// to 0 and the field is omitted from the payload.
func GenderID(g domain.Gender) int {
	switch g {
	case domain.GenderFemale:
		return GenderIDFemale
	case domain.GenderMale:
		return GenderIDMale
	default:
		return 0
	}
}
