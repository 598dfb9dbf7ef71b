package jobs

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Outcome is the terminal result a worker reports for a job.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// IsValid reports whether o is success or failure.
func (o Outcome) IsValid() bool { return o == OutcomeSuccess || o == OutcomeFailure }

// ClaimRequest is the POST /jobs/claim body.
type ClaimRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

// ReportRequest is the POST /jobs/report body. Type defaults to
// ORDER_BATCH when empty.
//
// For batches ResultLocation is written to every item and PreviewLocation to
// the order. For scans MasterFile and Assets are stored on the template.
type ReportRequest struct {
	JobID           string   `json:"jobId"                     validate:"required"`
	Type            Kind     `json:"type,omitempty"            validate:"omitempty,oneof=ORDER_BATCH TEMPLATE_SCAN"`
	Outcome         Outcome  `json:"outcome"                   validate:"required,oneof=success failure"`
	ResultLocation  string   `json:"resultLocation,omitempty"`
	PreviewLocation string   `json:"previewLocation,omitempty"`
	ErrorDetail     string   `json:"errorDetail,omitempty"     validate:"max=4000"`
	MasterFile      string   `json:"masterFile,omitempty"`
	Assets          []string `json:"assets,omitempty"`
}

// Kind returns the report's job kind, defaulting to ORDER_BATCH.
func (r ReportRequest) Kind() Kind {
	if r.Type == "" {
		return KindOrderBatch
	}
	return r.Type
}

// Errors returned by Validate. Handlers map both to 400.
var (
	ErrMissingJobID   = errors.New("jobId is required")
	ErrMissingOrderID = errors.New("orderId is required")
	ErrBadOutcome     = errors.New(`outcome must be "success" or "failure"`)
	ErrBadType        = errors.New(`type must be "ORDER_BATCH" or "TEMPLATE_SCAN"`)
	ErrDetailTooLong  = errors.New("errorDetail is too long")
)

var validate = validator.New()

// Validate checks r and maps validator failures to the sentinel errors above.
func (r *ReportRequest) Validate() error {
	r.JobID = strings.TrimSpace(r.JobID)
	return mapValidation(validate.Struct(r))
}

// Validate checks that an order id is present.
func (r *ClaimRequest) Validate() error {
	r.OrderID = strings.TrimSpace(r.OrderID)
	return mapValidation(validate.Struct(r))
}

func mapValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch fe := verrs[0]; fe.Field() {
	case "JobID":
		return ErrMissingJobID
	case "OrderID":
		return ErrMissingOrderID
	case "Outcome":
		return ErrBadOutcome
	case "Type":
		return ErrBadType
	case "ErrorDetail":
		return ErrDetailTooLong
	default:
		return err
	}
}

// ReportResponse is the POST /jobs/report response body. Changed counts the
// rows the report moved; zero on a duplicate report.
type ReportResponse struct {
	Success bool  `json:"success"`
	Changed int64 `json:"changed"`
}
