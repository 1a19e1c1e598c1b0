package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/dgallion1/contractreview/internal/pipeline"
)

var reviewFlags struct {
	role     string
	kind     string
	concerns string
	format   string
	quick    bool
	focus    []string
	stream   bool
	print    bool
}

var reviewCmd = &cobra.Command{
	Use:   "review FILE",
	Short: "Review a .docx or .pdf contract and write a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	f := reviewCmd.Flags()
	f.StringVar(&reviewFlags.role, "role", "", "Client role, e.g. 甲方 or 乙方")
	f.StringVar(&reviewFlags.kind, "type", "", "Contract type, e.g. 采购合同")
	f.StringVar(&reviewFlags.concerns, "concerns", "", "Specific concerns of the client")
	f.StringVar(&reviewFlags.format, "format", "", "Report format: word, markdown or html (default from config)")
	f.BoolVar(&reviewFlags.quick, "quick", false, "Skip checklist generation and review against fixed focus areas")
	f.StringSliceVar(&reviewFlags.focus, "focus", nil, "Focus areas for --quick (comma separated)")
	f.BoolVar(&reviewFlags.stream, "stream", false, "Print the review as it is generated")
	f.BoolVar(&reviewFlags.print, "print", false, "Render the finished report in the terminal")
}

func runReview(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !parser.IsSupportedExtension(path) {
		return fmt.Errorf("%w: %s", parser.ErrUnsupportedFormat, filepath.Ext(path))
	}

	var logOut io.Writer = io.Discard
	if verbose {
		logOut = os.Stderr
	}
	a, err := newApp(logOut, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format := reviewFlags.format
	if format == "" && !reviewFlags.quick {
		format = a.cfg.DefaultExportFormat
	}

	opts := []pipeline.Option{
		pipeline.WithExtractOptions(parser.WithPdftotextFallback(a.cfg.PDFFallbackPdftotext)),
	}
	var bar *progressbar.ProgressBar
	if reviewFlags.stream {
		opts = append(opts,
			pipeline.WithProgress(func(msg string, pct int) { color.New(color.FgCyan).Fprintf(os.Stderr, "[%3d%%] %s\n", pct, msg) }),
			pipeline.WithFragmentSink(func(s string) { fmt.Fprint(os.Stdout, s) }),
		)
	} else {
		bar = newProgressBar()
		opts = append(opts, pipeline.WithProgress(func(msg string, pct int) {
			bar.Describe(color.BlueString(msg))
			_ = bar.Set(pct)
		}))
	}

	coord := pipeline.NewCoordinator(a.reviewer, a.renderer, a.log, opts...)
	req := pipeline.Request{
		FilePath:     path,
		ClientRole:   reviewFlags.role,
		ContractType: reviewFlags.kind,
		UserConcerns: reviewFlags.concerns,
		OutputFormat: format,
	}
	var res pipeline.Result
	if reviewFlags.quick {
		res = coord.QuickReview(ctx, req, reviewFlags.focus)
	} else {
		res = coord.ReviewContract(ctx, req)
	}
	if bar != nil {
		_ = bar.Finish()
	}
	fmt.Fprintln(os.Stderr)

	backend := a.cfg.Backend()
	if _, err := a.history.Add(pipeline.HistoryRecord(req, a.cfg.ModelType, backend.Model, res)); err != nil {
		a.log.Warn("history record not saved", "error", err)
	}

	return printResult(res)
}

func printResult(res pipeline.Result) error {
	if !res.Success {
		color.Red("✗ %s", res.Message)
		if res.Failure != nil && res.Failure.Raw != "" {
			fmt.Fprintf(os.Stderr, "\n模型原始输出:\n%s\n", res.Failure.Raw)
		}
		if res.Data != nil && res.Data.ReportText != "" {
			color.Yellow("审查结果已生成，但报告文件未能写入")
			if reviewFlags.print {
				printReport(res.Data.ReportText)
			}
		}
		return errors.New(res.Message)
	}

	if res.Failure != nil {
		color.Yellow("! 深度审查未完成，已生成降级报告: %s", res.Failure.Detail)
	} else {
		color.Green("✓ %s", res.Message)
	}
	color.White("报告文件: %s", res.Data.ReportPath)
	if reviewFlags.print && !reviewFlags.stream {
		printReport(res.Data.ReportText)
	}
	return nil
}

func printReport(text string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(text); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Println(text)
}

func newProgressBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.BlueString("准备审查...")),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
