package pipeline

import (
	"context"
	"errors"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/dgallion1/contractreview/internal/render"
	"github.com/dgallion1/contractreview/internal/review"
)

// Severity separates failures that ended the job from ones it recovered from.
type Severity string

const (
	Fatal     Severity = "fatal"
	Recovered Severity = "recovered"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnsupportedFormat Kind = "unsupported_format"
	KindParse             Kind = "parse_error"
	KindPlannerCall       Kind = "planner_call_error"
	KindChecklistFormat   Kind = "checklist_format_error"
	KindReviewCall        Kind = "review_call_error"
	KindRender            Kind = "render_error"
	KindCanceled          Kind = "canceled"
	KindInternal          Kind = "internal_error"
)

// Failure describes what went wrong in a job. Raw carries upstream text
// useful for diagnosis, such as the unparseable model response.
type Failure struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Detail   string   `json:"detail"`
	Raw      string   `json:"raw,omitempty"`
}

// Result is the outcome of a coordinator run. A recovered failure is
// reported alongside Success == true.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    *ResultData `json:"data,omitempty"`
	Failure *Failure    `json:"failure,omitempty"`
}

// ResultData is what a review produced. ReportPath is empty when rendering failed.
type ResultData struct {
	Checklist  contract.Checklist `json:"checklist"`
	ReportText string             `json:"review_report"`
	ReportPath string             `json:"report_path"`
	Metadata   contract.Metadata  `json:"metadata"`
}

// KindOf maps an error from any stage to its failure kind.
func KindOf(err error) Kind {
	var (
		pe  *parser.ParseError
		cfe *review.ChecklistFormatError
		rce *review.ReviewCallError
		re  *render.RenderError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, parser.ErrUnsupportedFormat), errors.Is(err, render.ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.As(err, &pe):
		return KindParse
	case errors.As(err, &cfe):
		return KindChecklistFormat
	case errors.As(err, &rce):
		return KindReviewCall
	case errors.As(err, &re):
		return KindRender
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, review.ErrPlannerCall):
		return KindPlannerCall
	default:
		return KindInternal
	}
}

func newFailure(sev Severity, err error) *Failure {
	f := &Failure{Severity: sev, Kind: KindOf(err), Detail: err.Error()}
	var cfe *review.ChecklistFormatError
	if errors.As(err, &cfe) {
		f.Raw = cfe.Raw
	}
	return f
}
