package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/dgallion1/contractreview/internal/render"
	"github.com/dgallion1/contractreview/internal/review"
)

// shortDocumentChars is the length below which an extracted text is logged as suspicious.
const shortDocumentChars = 100

// Step names a coordinator stage.
type Step string

const (
	StepExtract   Step = "extract"
	StepChecklist Step = "checklist"
	StepReview    Step = "review"
	StepRender    Step = "render"
	StepDone      Step = "done"
)

// ProgressFunc receives a message and a percentage that never decreases within a job.
type ProgressFunc func(message string, percent int)

// ReportRenderer writes a report file and returns its path.
type ReportRenderer interface {
	Render(reportText string, meta contract.Metadata, format render.Format) (string, error)
}

// Request describes one review.
type Request struct {
	FilePath     string
	FileName     string // Client-facing file name, defaults to the base of FilePath
	ContractName string // Defaults to FileName without extension
	ClientRole   string
	ContractType string
	UserConcerns string
	OutputFormat string // Defaults to word, or markdown for QuickReview
}

// Coordinator runs one review job from file to rendered report. It holds
// the per-job progress state and must not be shared between jobs.
type Coordinator struct {
	reviewer    *review.Reviewer
	renderer    ReportRenderer
	log         *slog.Logger
	progress    ProgressFunc
	onStep      func(Step)
	fragments   func(string)
	extractOpts []parser.Option
	now         func() time.Time

	percent int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithProgress sets the progress sink.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Coordinator) { c.progress = fn }
}

// WithStepObserver is called as each step begins.
func WithStepObserver(fn func(Step)) Option {
	return func(c *Coordinator) { c.onStep = fn }
}

// WithFragmentSink switches the review step to streaming and forwards each fragment.
func WithFragmentSink(fn func(string)) Option {
	return func(c *Coordinator) { c.fragments = fn }
}

// WithExtractOptions passes options through to the text extractor.
func WithExtractOptions(opts ...parser.Option) Option {
	return func(c *Coordinator) { c.extractOpts = opts }
}

func NewCoordinator(reviewer *review.Reviewer, renderer ReportRenderer, log *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		reviewer: reviewer,
		renderer: renderer,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReviewContract runs extract, checklist, review, render and done. Extraction,
// checklist and render failures end the job with Success == false; a failed
// review call is replaced by a degraded report and the job still succeeds.
func (c *Coordinator) ReviewContract(ctx context.Context, req Request) Result {
	const total = 5
	c.percent = 0
	log := c.log.With("file", fileName(req))

	format, err := formatOrDefault(req.OutputFormat, render.FormatWord)
	if err != nil {
		return c.fail(log, err, nil)
	}

	// Step 1: Extract
	c.report(StepExtract, "正在解析合同文档...", 1, total)
	doc, err := c.extract(log, req.FilePath)
	if err != nil {
		return c.fail(log, err, nil)
	}
	sections := parser.ClassifySections(doc.Text)

	// Step 2: Checklist
	c.report(StepChecklist, "AI正在分析需求，生成审查清单...", 2, total)
	checklist, err := c.reviewer.GenerateChecklist(ctx, req.ClientRole, req.ContractType, req.UserConcerns)
	if err != nil {
		return c.fail(log, err, nil)
	}

	// Step 3: Review
	c.report(StepReview, "AI正在深度审查合同条款（可能需要1-2分钟）...", 3, total)
	reportText, recovered, err := c.review(ctx, log, req.ClientRole, checklist, doc.Text)
	if err != nil {
		return c.fail(log, err, nil)
	}

	// Step 4: Render
	c.report(StepRender, "正在生成审查报告...", 4, total)
	meta := contract.Metadata{
		ContractName: contractName(req),
		ContractFile: fileName(req),
		ClientRole:   req.ClientRole,
		ContractType: req.ContractType,
		UserConcerns: req.UserConcerns,
		Checklist:    checklist,
		Document:     doc.Info,
		Sections:     sections.Counts(),
		ReviewedAt:   c.now(),
	}
	data := &ResultData{Checklist: checklist, ReportText: reportText, Metadata: meta}
	path, err := c.renderer.Render(reportText, meta, format)
	if err != nil {
		return c.fail(log, err, data)
	}
	data.ReportPath = path

	// Step 5: Done
	c.report(StepDone, "审查完成！", 5, total)
	log.Info("review complete", "report", path, "degraded", recovered != nil)
	return Result{Success: true, Message: "合同审查成功完成", Data: data, Failure: recovered}
}

// QuickReview skips checklist generation and reviews against a fixed
// checklist built from focusAreas. The output format defaults to markdown.
func (c *Coordinator) QuickReview(ctx context.Context, req Request, focusAreas []string) Result {
	const total = 3
	c.percent = 0
	log := c.log.With("file", fileName(req), "quick", true)

	format, err := formatOrDefault(req.OutputFormat, render.FormatMarkdown)
	if err != nil {
		return c.fail(log, err, nil)
	}

	c.report(StepExtract, "正在解析合同文档...", 1, total)
	doc, err := c.extract(log, req.FilePath)
	if err != nil {
		return c.fail(log, err, nil)
	}

	c.report(StepReview, "AI正在审查合同...", 2, total)
	checklist := review.QuickChecklist(focusAreas)
	reportText, recovered, err := c.review(ctx, log, req.ClientRole, checklist, doc.Text)
	if err != nil {
		return c.fail(log, err, nil)
	}

	c.report(StepRender, "正在生成报告...", 3, total)
	meta := contract.Metadata{
		ContractName: contractName(req),
		ContractFile: fileName(req),
		ClientRole:   req.ClientRole,
		ContractType: req.ContractType,
		UserConcerns: req.UserConcerns,
		Checklist:    checklist,
		Document:     doc.Info,
		ReviewedAt:   c.now(),
	}
	data := &ResultData{Checklist: checklist, ReportText: reportText, Metadata: meta}
	path, err := c.renderer.Render(reportText, meta, format)
	if err != nil {
		return c.fail(log, err, data)
	}
	data.ReportPath = path

	c.report(StepDone, "快速审查完成！", total, total)
	return Result{Success: true, Message: "快速审查完成", Data: data, Failure: recovered}
}

// Render re-renders an already produced report without calling the model.
func (c *Coordinator) Render(reportText string, meta contract.Metadata, outputFormat string) Result {
	log := c.log.With("contract", meta.ContractName)
	data := &ResultData{Checklist: meta.Checklist, ReportText: reportText, Metadata: meta}

	format, err := formatOrDefault(outputFormat, render.FormatWord)
	if err != nil {
		return c.fail(log, err, data)
	}
	path, err := c.renderer.Render(reportText, meta, format)
	if err != nil {
		return c.fail(log, err, data)
	}
	data.ReportPath = path
	return Result{Success: true, Message: "报告生成成功", Data: data}
}

func (c *Coordinator) extract(log *slog.Logger, path string) (*contract.Document, error) {
	doc, err := parser.ExtractFile(path, c.extractOpts...)
	if err != nil {
		return nil, err
	}
	n := utf8.RuneCountInString(strings.TrimSpace(doc.Text))
	if n == 0 {
		return nil, &parser.ParseError{Path: path, Err: parser.ErrEmptyDocument}
	}
	if n < shortDocumentChars {
		log.Warn("extracted text is short", "chars", n)
	}
	log.Info("document extracted", "chars", n, "paragraphs", doc.Info.ParagraphCount, "source", string(doc.Info.SourceKind))
	return doc, nil
}

// review runs the reviewer stage. A failed call yields the degraded report
// and a recovered failure; only cancellation of ctx is returned as an error.
func (c *Coordinator) review(ctx context.Context, log *slog.Logger, clientRole string, cl contract.Checklist, text string) (string, *Failure, error) {
	var (
		report string
		err    error
	)
	if c.fragments != nil {
		var sb strings.Builder
		for frag, ferr := range c.reviewer.ReviewContractStream(ctx, clientRole, cl, text) {
			if ferr != nil {
				err = ferr
				break
			}
			sb.WriteString(frag)
			c.fragments(frag)
		}
		report = sb.String()
	} else {
		report, err = c.reviewer.ReviewContract(ctx, clientRole, cl, text)
	}
	if err == nil && strings.TrimSpace(report) == "" {
		err = &review.ReviewCallError{Err: errors.New("empty report")}
	}
	if err == nil {
		return report, nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", nil, ctxErr
	}

	log.Error("contract review failed, using degraded report", "error", err)
	f := newFailure(Recovered, err)
	f.Raw = report
	return review.DegradedReport(cl, err), f, nil
}

// report emits progress for step i of total.
func (c *Coordinator) report(step Step, message string, i, total int) {
	pct := int(math.Round(float64(i) / float64(total) * 100))
	if pct < c.percent {
		pct = c.percent
	}
	c.percent = pct
	c.log.Info(message, "step", string(step), "percent", pct)
	if c.onStep != nil {
		c.onStep(step)
	}
	if c.progress != nil {
		c.progress(message, pct)
	}
}

func (c *Coordinator) fail(log *slog.Logger, err error, data *ResultData) Result {
	f := newFailure(Fatal, err)
	msg := fmt.Sprintf("审查流程出错: %s", err)
	log.Error("review failed", "kind", string(f.Kind), "error", err)
	if c.progress != nil {
		c.progress(msg, c.percent)
	}
	return Result{Success: false, Message: msg, Data: data, Failure: f}
}

func formatOrDefault(s string, def render.Format) (render.Format, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return render.ParseFormat(s)
}

func contractName(req Request) string {
	if req.ContractName != "" {
		return req.ContractName
	}
	return trimExt(fileName(req))
}

func fileName(req Request) string {
	if req.FileName != "" {
		return req.FileName
	}
	return filepath.Base(req.FilePath)
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
