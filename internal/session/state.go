package session

// State is the position of a check-in conversation
type State string

const (
	// StateCollecting accepts document photos until the user continues
	StateCollecting State = "collecting"
	// StateConfirmingMatch waits for the user to pick or reject candidates
	StateConfirmingMatch State = "confirming_match"
	// StateCheckingIn runs the external check-in action
	StateCheckingIn State = "checking_in"
	// StateInvoiceOffered waits for the invoice accept/decline answer
	StateInvoiceOffered State = "invoice_offered"

	// Terminal states
	StateDone      State = "done"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the state ends the session
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}
