package render

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/dgallion1/contractreview/internal/parser"
	"github.com/fumiama/go-docx"
)

const sampleReport = `### 一、核心风险提示

#### 风险点1: 付款周期过长
- **条款引用:** 第一条
- **风险等级:** 高

### 二、修改方案对比

| 原条款内容 | 风险说明 | 修改建议 | 修改后建议文本 |
| :--- | :--- | :--- | :--- |
| 甲方应在验收合格后90日内支付款项 | 付款周期过长 | 缩短为30天 | 甲方应在验收合格后30日内支付款项 |
`

func testRenderer(t *testing.T) (*Renderer, *time.Time) {
	t.Helper()
	now := time.Date(2026, 5, 20, 9, 30, 0, 0, time.Local)
	r := NewRenderer(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return now }
	return r, &now
}

func sampleMeta() contract.Metadata {
	return contract.Metadata{
		ContractName: "软件开发合同",
		ClientRole:   "乙方",
		ContractType: "软件开发合同",
		UserConcerns: "关注付款周期",
		Checklist: contract.Checklist{
			FocusDimensions: []string{"付款条款", "知识产权"},
			Checks:          []contract.Check{{Point: "付款周期", Logic: "检查付款周期是否合理"}},
		},
		ReviewedAt: time.Date(2026, 5, 20, 9, 29, 58, 0, time.Local),
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"word": FormatWord, "DOCX": FormatWord,
		"markdown": FormatMarkdown, "md": FormatMarkdown,
		"html": FormatHTML,
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for pdf, got %v", err)
	}
}

func TestRender_MarkdownLayout(t *testing.T) {
	r, _ := testRenderer(t)
	path, err := r.Render(sampleReport, sampleMeta(), FormatMarkdown)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if base := filepath.Base(path); base != "合同审查报告_软件开发合同_20260520_093000.md" {
		t.Errorf("unexpected file name %q", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	order := []string{
		"# 合同审查报告",
		"## 一、基本信息",
		"- **审查时间**: 2026-05-20 09:29:58",
		"- **审查要点数量**: 1",
		"## 二、审查要点清单",
		"### 审查维度\n- 付款条款\n- 知识产权",
		"### 具体审查点\n- **付款周期**: 检查付款周期是否合理",
		"## 三、审查结果\n\n" + sampleReport,
		"---",
		"## 免责声明",
		DisclaimerText,
	}
	pos := 0
	for _, want := range order {
		i := strings.Index(got[pos:], want)
		if i < 0 {
			t.Fatalf("expected %q after offset %d in:\n%s", want, pos, got)
		}
		pos += i + len(want)
	}
}

func TestRender_IdempotentContentDistinctNames(t *testing.T) {
	r, now := testRenderer(t)
	first, err := r.Render(sampleReport, sampleMeta(), FormatMarkdown)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	*now = now.Add(time.Second)
	second, err := r.Render(sampleReport, sampleMeta(), FormatMarkdown)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct file names, got %q twice", first)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Error("expected identical content for identical input")
	}
}

func TestRender_SameSecondGetsSuffix(t *testing.T) {
	r, _ := testRenderer(t)
	first, err := r.Render("first", sampleMeta(), FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Render("second", sampleMeta(), FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(second, "_093000_2.md") {
		t.Errorf("expected _2 suffix, got %q", second)
	}
	a, _ := os.ReadFile(first)
	if !strings.Contains(string(a), "first") || strings.Contains(string(a), "second") {
		t.Error("earlier file must not be overwritten")
	}

	entries, _ := os.ReadDir(filepath.Dir(first))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestRender_EmptyContractName(t *testing.T) {
	r, _ := testRenderer(t)
	meta := sampleMeta()
	meta.ContractName = "  "
	_, err := r.Render(sampleReport, meta, FormatMarkdown)
	var re *RenderError
	if !errors.As(err, &re) || re.Op != "metadata" {
		t.Fatalf("expected metadata RenderError, got %v", err)
	}
	entries, _ := os.ReadDir(r.dir)
	if len(entries) != 0 {
		t.Errorf("expected no files written, got %d", len(entries))
	}
}

func TestRender_UnwritableDirectory(t *testing.T) {
	r, _ := testRenderer(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r.dir = filepath.Join(blocker, "out")
	_, err := r.Render(sampleReport, sampleMeta(), FormatMarkdown)
	var re *RenderError
	if !errors.As(err, &re) || re.Op != "write" {
		t.Fatalf("expected write RenderError, got %v", err)
	}
}

func TestRender_Word(t *testing.T) {
	r, _ := testRenderer(t)
	path, err := r.Render(sampleReport, sampleMeta(), FormatWord)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if filepath.Ext(path) != ".docx" {
		t.Fatalf("expected .docx, got %q", path)
	}

	doc, err := parser.ExtractFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	for _, want := range []string{"合同审查报告", "三、审查结果", "风险点1: 付款周期过长", "【审查维度】", "免责声明", DisclaimerText} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("docx text missing %q", want)
		}
	}
	if len(doc.Tables) != 2 {
		t.Fatalf("expected info table and report table, got %d", len(doc.Tables))
	}
	info := doc.Tables[0]
	if len(info) != 5 || info[0][1] != "软件开发合同" || info[4][1] != "1" {
		t.Errorf("unexpected info table %q", info)
	}
	report := doc.Tables[1]
	if len(report) != 2 || len(report[0]) != 4 || report[1][3] != "甲方应在验收合格后30日内支付款项" {
		t.Errorf("unexpected report table %q", report)
	}
}

func TestRender_WordHeadingStyles(t *testing.T) {
	r, _ := testRenderer(t)
	path, err := r.Render(sampleReport, sampleMeta(), FormatWord)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parse docx: %v", err)
	}
	styles := map[string]string{}
	for _, it := range doc.Document.Body.Items {
		p, ok := it.(*docx.Paragraph)
		if !ok || p.Properties == nil || p.Properties.Style == nil {
			continue
		}
		styles[strings.TrimSpace(p.String())] = p.Properties.Style.Val
	}
	want := map[string]string{
		ReportTitle:    "Heading1",
		"三、审查结果":       "Heading2",
		"一、核心风险提示":     "Heading3",
		"风险点1: 付款周期过长": "Heading4",
	}
	for text, style := range want {
		if styles[text] != style {
			t.Errorf("paragraph %q: expected style %s, got %q", text, style, styles[text])
		}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	f, err := zr.Open("word/styles.xml")
	if err != nil {
		t.Fatalf("open styles: %v", err)
	}
	defer f.Close()
	xml, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, style := range []string{"Heading1", "Heading2", "Heading3", "Heading4", "Heading5"} {
		id := `w:styleId="` + style + `"`
		if !bytes.Contains(xml, []byte(id)) {
			t.Errorf("styles.xml missing %s", id)
		}
	}
	if !bytes.Contains(xml, []byte(`<w:outlineLvl w:val="2"/>`)) {
		t.Error("expected outline levels on heading styles")
	}
}

func TestRender_HTML(t *testing.T) {
	r, _ := testRenderer(t)
	path, err := r.Render(sampleReport+"\n<script>alert(1)</script>\n", sampleMeta(), FormatHTML)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	for _, want := range []string{"<title>合同审查报告 - 软件开发合同</title>", "<h2>三、审查结果</h2>", "<table>", "原条款内容</th>"} {
		if !strings.Contains(got, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Contains(got, "<script>") {
		t.Error("raw html from the review text must not pass through")
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"采购合同":        "采购合同",
		"a/b\\c:d":    "a_b_c_d",
		"  ..合同..  ":  "合同",
		"line\nbreak": "linebreak",
		"":            "",
	}
	for in, want := range tests {
		if got := safeName(in); got != want {
			t.Errorf("safeName(%q) = %q, want %q", in, got, want)
		}
	}
}
