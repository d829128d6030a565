package session

// Event is an inbound conversation event for one user. Events for the
// same user are applied strictly in receipt order.
type Event interface {
	isEvent()
}

// PhotoReceived carries one document photo
type PhotoReceived struct {
	Image []byte
}

// ContinuePressed signals the user is done sending photos
type ContinuePressed struct{}

// CandidateChosen confirms one reservation candidate
type CandidateChosen struct {
	ReservationID string
}

// CandidatesRejected rejects every presented candidate
type CandidatesRejected struct{}

// InvoiceAccepted asks for the invoice draft
type InvoiceAccepted struct{}

// InvoiceDeclined skips the invoice
type InvoiceDeclined struct{}

// Cancel aborts the session. Expired marks an inactivity timeout rather
// than an explicit user action.
type Cancel struct {
	Expired bool
}

func (PhotoReceived) isEvent()      {}
func (ContinuePressed) isEvent()    {}
func (CandidateChosen) isEvent()    {}
func (CandidatesRejected) isEvent() {}
func (InvoiceAccepted) isEvent()    {}
func (InvoiceDeclined) isEvent()    {}
func (Cancel) isEvent()             {}
