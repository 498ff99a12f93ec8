package payment

// InitiateRequest is the request for services.payment.initiate.
type InitiateRequest struct {
	Initiation
}

// InitiateResponse is the reply for services.payment.initiate.
type InitiateResponse struct {
	Result *Result     `json:"result,omitempty"`
	Error  *ReplyError `json:"error,omitempty"`
}

// ReferenceRequest names a payment for services.payment.status and
// services.payment.refund.
type ReferenceRequest struct {
	Reference string `json:"reference"`
}

// StatusResponse is the reply for services.payment.status and
// services.payment.refund.
type StatusResponse struct {
	Reference string      `json:"reference"`
	Status    Status      `json:"status,omitempty"`
	Error     *ReplyError `json:"error,omitempty"`
}

// Reply error kinds.
const (
	KindProvider         = "provider"
	KindUnknownReference = "unknown_reference"
	KindInvalid          = "invalid"
)

// ReplyError carries a gateway error across the service boundary.
type ReplyError struct {
	Kind       string `json:"kind"`
	Op         string `json:"op,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}
