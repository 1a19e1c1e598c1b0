package render

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/contractreview/internal/contract"
)

const (
	// ReportTitle is the document title and the file name prefix.
	ReportTitle     = "合同审查报告"
	DisclaimerTitle = "免责声明"
	DisclaimerText  = "本报告由AI助手生成，仅供参考，不构成法律意见。请在签署任何法律文件前咨询专业律师。本助手不对使用本报告造成的任何后果承担责任。"

	timestampLayout = "2006-01-02 15:04:05"
	fileTimeLayout  = "20060102_150405"
	maxNameAttempts = 100
)

// Format is an output document kind.
type Format string

const (
	FormatWord     Format = "word"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ErrUnsupportedFormat is returned for an unknown output format name.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat accepts word|docx, markdown|md and html, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "docx":
		return FormatWord, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string {
	switch f {
	case FormatWord:
		return "docx"
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	default:
		return ""
	}
}

// RenderError reports a failure to produce a report file.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Renderer writes report files into one output directory.
type Renderer struct {
	dir string
	now func() time.Time
	log *slog.Logger
}

func NewRenderer(dir string, log *slog.Logger) *Renderer {
	return &Renderer{dir: dir, now: time.Now, log: log}
}

// Render assembles the report for meta in memory and writes it to a new
// file, returning its path. Existing files are never overwritten.
func (r *Renderer) Render(reportText string, meta contract.Metadata, format Format) (string, error) {
	name := safeName(meta.ContractName)
	if name == "" {
		return "", &RenderError{Op: "metadata", Err: errors.New("contract name is empty")}
	}
	if format.Ext() == "" {
		return "", &RenderError{Op: "format", Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)}
	}

	reviewedAt := meta.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = r.now()
	}
	stamp := reviewedAt.Format(timestampLayout)

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatWord:
		data, err = buildDocx(ParseMarkdown(reportText), meta, stamp)
	case FormatMarkdown:
		data = buildMarkdown(reportText, meta, stamp)
	case FormatHTML:
		data, err = buildHTML(reportText, meta, stamp)
	}
	if err != nil {
		return "", &RenderError{Op: "assemble", Err: err}
	}

	path, err := r.writeNew(fmt.Sprintf("%s_%s_%s", ReportTitle, name, r.now().Format(fileTimeLayout)), format.Ext(), data)
	if err != nil {
		return "", &RenderError{Op: "write", Err: err}
	}
	r.log.Info("report written", "path", path, "format", string(format), "bytes", len(data))
	return path, nil
}

// writeNew writes data to a temp file and links it to the first free name of
// base.ext, base_2.ext, base_3.ext and so on.
func (r *Renderer) writeNew(base, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp: %w", err)
	}

	for i := 1; i <= maxNameAttempts; i++ {
		name := base + "." + ext
		if i > 1 {
			name = fmt.Sprintf("%s_%d.%s", base, i, ext)
		}
		path := filepath.Join(r.dir, name)
		err := os.Link(tmpPath, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("link %s: %w", name, err)
		}
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", base, maxNameAttempts)
}

// safeName reduces a contract name to a single path element.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, ". ")
	if len([]rune(name)) > 80 {
		name = string([]rune(name)[:80])
	}
	return name
}
