package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
)

// ErrEmptyChecklist is wrapped by ChecklistFormatError when the planner
// returns valid JSON without any checks.
var ErrEmptyChecklist = errors.New("checklist has no specific checks")

// ChecklistFormatError reports a planner response that could not be turned
// into a checklist. Raw holds the unmodified model output.
type ChecklistFormatError struct {
	Raw string
	Err error
}

func (e *ChecklistFormatError) Error() string {
	return fmt.Sprintf("checklist format: %v", e.Err)
}

func (e *ChecklistFormatError) Unwrap() error { return e.Err }

// ExtractJSON returns the payload of a planner response: the content of the
// first ```json fence if present, else of the first plain ``` fence, else
// the response itself.
func ExtractJSON(raw string) string {
	if _, rest, ok := strings.Cut(raw, "```json"); ok {
		body, _, _ := strings.Cut(rest, "```")
		return strings.TrimSpace(body)
	}
	if _, rest, ok := strings.Cut(raw, "```"); ok {
		body, _, _ := strings.Cut(rest, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(raw)
}

// ParseChecklist extracts and decodes a planner response.
func ParseChecklist(raw string) (contract.Checklist, error) {
	var cl contract.Checklist
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &cl); err != nil {
		return contract.Checklist{}, &ChecklistFormatError{Raw: raw, Err: err}
	}
	if len(cl.Checks) == 0 {
		return contract.Checklist{}, &ChecklistFormatError{Raw: raw, Err: ErrEmptyChecklist}
	}
	return cl, nil
}
