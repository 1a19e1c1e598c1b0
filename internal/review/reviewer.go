package review

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/dgallion1/contractreview/internal/llm"
)

const (
	// DefaultMaxContractChars caps the contract text sent to the reviewer stage.
	DefaultMaxContractChars = 12000
	// TruncationMarker is appended to contract text cut to the cap.
	TruncationMarker = "\n\n[注意：合同文本较长，已截断前部分进行审查]"
)

// ChatModel is the model backend contract used by the reviewer.
type ChatModel interface {
	Chat(ctx context.Context, msgs []llm.Message, opts llm.CallOptions) (string, error)
	Stream(ctx context.Context, msgs []llm.Message, opts llm.CallOptions) iter.Seq2[string, error]
}

// ErrPlannerCall is wrapped around a failed checklist-generation model call.
var ErrPlannerCall = errors.New("checklist generation call failed")

// ReviewCallError wraps a failed reviewer-stage model call.
type ReviewCallError struct {
	Err error
}

func (e *ReviewCallError) Error() string {
	return fmt.Sprintf("contract review call: %v", e.Err)
}

func (e *ReviewCallError) Unwrap() error { return e.Err }

// Config holds the sampling parameters of both stages.
type Config struct {
	ChecklistTemperature float64
	ReviewTemperature    float64
	MaxTokens            int
	MaxContractChars     int
}

// DefaultConfig returns the designed stage parameters.
func DefaultConfig() Config {
	return Config{
		ChecklistTemperature: 0.3,
		ReviewTemperature:    0.5,
		MaxTokens:            4096,
		MaxContractChars:     DefaultMaxContractChars,
	}
}

// Reviewer runs the two model stages. It keeps no per-job state and can be
// shared or created per job.
type Reviewer struct {
	model ChatModel
	cfg   Config
	log   *slog.Logger
}

func NewReviewer(model ChatModel, cfg Config, log *slog.Logger) *Reviewer {
	if cfg.MaxContractChars <= 0 {
		cfg.MaxContractChars = DefaultMaxContractChars
	}
	return &Reviewer{model: model, cfg: cfg, log: log}
}

// GenerateChecklist asks the planner stage for a review checklist.
func (r *Reviewer) GenerateChecklist(ctx context.Context, clientRole, contractType, userConcerns string) (contract.Checklist, error) {
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemMessage},
		{Role: llm.RoleUser, Content: PlannerPrompt(clientRole, contractType, userConcerns)},
	}

	r.log.Info("generating checklist", "client_role", clientRole, "contract_type", contractType)
	raw, err := r.model.Chat(ctx, msgs, llm.CallOptions{
		Temperature: r.cfg.ChecklistTemperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
	if err != nil {
		return contract.Checklist{}, fmt.Errorf("%w: %w", ErrPlannerCall, err)
	}

	cl, err := ParseChecklist(raw)
	if err != nil {
		r.log.Error("checklist parse failed", "error", err, "raw_len", len(raw))
		return contract.Checklist{}, err
	}
	r.log.Info("checklist generated", "focus", len(cl.FocusDimensions), "checks", len(cl.Checks))
	return cl, nil
}

// ReviewContract asks the reviewer stage for the risk report. Any model
// failure is returned as a *ReviewCallError.
func (r *Reviewer) ReviewContract(ctx context.Context, clientRole string, cl contract.Checklist, contractText string) (string, error) {
	msgs := r.reviewerMessages(clientRole, cl, contractText)
	report, err := r.model.Chat(ctx, msgs, r.reviewOptions())
	if err != nil {
		return "", &ReviewCallError{Err: err}
	}
	r.log.Info("contract reviewed", "report_len", utf8.RuneCountInString(report))
	return report, nil
}

// ReviewContractStream is ReviewContract with the report delivered as
// fragments. The sequence is single-use; breaking out of the range stops the
// backend request. A failure is yielded once as a *ReviewCallError.
func (r *Reviewer) ReviewContractStream(ctx context.Context, clientRole string, cl contract.Checklist, contractText string) iter.Seq2[string, error] {
	msgs := r.reviewerMessages(clientRole, cl, contractText)
	inner := r.model.Stream(ctx, msgs, r.reviewOptions())
	return func(yield func(string, error) bool) {
		for frag, err := range inner {
			if err != nil {
				yield("", &ReviewCallError{Err: err})
				return
			}
			if !yield(frag, nil) {
				return
			}
		}
	}
}

func (r *Reviewer) reviewerMessages(clientRole string, cl contract.Checklist, contractText string) []llm.Message {
	text, truncated := TruncateContract(contractText, r.cfg.MaxContractChars)
	if truncated {
		r.log.Warn("contract text truncated",
			"original_chars", utf8.RuneCountInString(contractText),
			"max_chars", r.cfg.MaxContractChars)
	}
	prompt := ReviewerPrompt(clientRole, cl, text)
	r.log.Info("reviewing contract", "prompt_chars", utf8.RuneCountInString(prompt))
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemMessage},
		{Role: llm.RoleUser, Content: prompt},
	}
}

func (r *Reviewer) reviewOptions() llm.CallOptions {
	return llm.CallOptions{Temperature: r.cfg.ReviewTemperature, MaxTokens: r.cfg.MaxTokens}
}

// TruncateContract cuts text longer than limit characters to its first limit
// characters followed by TruncationMarker. Characters are Unicode code points.
func TruncateContract(text string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	i, n := 0, 0
	for i = range text {
		if n == limit {
			break
		}
		n++
	}
	return text[:i] + TruncationMarker, true
}

// QuickChecklist is the fixed checklist used when the planner stage is skipped.
func QuickChecklist(focusAreas []string) contract.Checklist {
	if len(focusAreas) == 0 {
		focusAreas = []string{"通用条款", "核心条款"}
	}
	return contract.Checklist{
		FocusDimensions: focusAreas,
		Checks: []contract.Check{
			{Point: "合规性审查", Logic: "检查条款是否符合法律法规"},
			{Point: "风险识别", Logic: "识别对客户不利的条款"},
		},
	}
}

// DegradedReport builds the checklist-only report used when the reviewer
// stage fails. It is written in the same markdown subset as a model report.
func DegradedReport(cl contract.Checklist, cause error) string {
	var b strings.Builder
	b.WriteString("### 审查未完成\n\n")
	b.WriteString("**注意：AI深度审查未能完成，本报告不完整，仅包含已生成的审查清单。**\n\n")

	b.WriteString("#### 审查维度\n")
	for _, f := range cl.FocusDimensions {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\n#### 具体审查点\n")
	for _, c := range cl.Checks {
		fmt.Fprintf(&b, "- **%s**: %s\n", c.Point, c.Logic)
	}

	b.WriteString("\n#### 建议\n")
	b.WriteString("- 缩短合同文本后重新审查\n")
	b.WriteString("- 检查网络连接或模型服务状态\n")
	b.WriteString("- 或者切换到本地Ollama模型\n")

	if cause != nil {
		fmt.Fprintf(&b, "\n错误信息: %s\n", cause.Error())
	}
	return b.String()
}
