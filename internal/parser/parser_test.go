package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/fumiama/go-docx"
	pdflib "github.com/ledongthuc/pdf"
)

func TestForFile_SupportedExtensions(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"合同.docx", "*parser.DOCXParser"},
		{"CONTRACT.DOCX", "*parser.DOCXParser"},
		{"scan.pdf", "*parser.PDFParser"},
		{"scan.PDF", "*parser.PDFParser"},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename)
		if err != nil {
			t.Fatalf("ForFile(%q): unexpected error: %v", tt.filename, err)
		}
		if got := fmt.Sprintf("%T", p); got != tt.want {
			t.Errorf("ForFile(%q): expected %s, got %s", tt.filename, tt.want, got)
		}
	}
}

func TestExtractFile_UnsupportedBeforeIO(t *testing.T) {
	// The files do not exist: an unsupported extension must be rejected
	// without ever trying to open them.
	for _, name := range []string{"notes.txt", "contract.doc", "readme.md", "noext"} {
		path := filepath.Join(t.TempDir(), name)
		_, err := ExtractFile(path)
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
		var pe *ParseError
		if errors.As(err, &pe) {
			t.Errorf("%s: expected no ParseError for unsupported format", name)
		}
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("a.docx") || !IsSupportedExtension("b.PDF") {
		t.Error("expected .docx and .pdf to be supported")
	}
	if IsSupportedExtension("c.txt") || IsSupportedExtension("d.doc") {
		t.Error("expected .txt and .doc to be unsupported")
	}
}

func writeTestDocx(t *testing.T, path string) {
	t.Helper()
	w := docx.New().WithDefaultTheme()
	w.AddParagraph().AddText("第一条 付款")
	w.AddParagraph()
	w.AddParagraph().AddText("甲方应在验收合格后90日内支付款项。")
	tbl := w.AddTable(2, 2, 0, nil)
	cells := [][]string{{"甲方", "乙方"}, {"买方", "卖方"}}
	for i, row := range tbl.TableRows {
		for j, cell := range row.TableCells {
			cell.AddParagraph().AddText(cells[i][j])
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()
	if _, err := w.WriteTo(f); err != nil {
		t.Fatalf("write docx: %v", err)
	}
}

func TestDOCXParser_ParagraphsAndTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.docx")
	writeTestDocx(t, path)

	doc, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantParas := []string{"第一条 付款", "甲方应在验收合格后90日内支付款项。"}
	if len(doc.Paragraphs) != len(wantParas) {
		t.Fatalf("expected %d paragraphs (empty skipped), got %d: %q", len(wantParas), len(doc.Paragraphs), doc.Paragraphs)
	}
	for i, w := range wantParas {
		if doc.Paragraphs[i] != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, doc.Paragraphs[i])
		}
	}
	if want := strings.Join(wantParas, "\n\n"); doc.Text != want {
		t.Errorf("expected text %q, got %q", want, doc.Text)
	}

	if len(doc.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(doc.Tables))
	}
	if got := doc.Tables[0]; len(got) != 2 || got[0][0] != "甲方" || got[1][1] != "卖方" {
		t.Errorf("unexpected table grid %q", got)
	}

	if doc.Info.SourceKind != contract.SourceWord {
		t.Errorf("expected source kind %q, got %q", contract.SourceWord, doc.Info.SourceKind)
	}
	if doc.Info.ParagraphCount != 2 || doc.Info.PageOrTableCount != 1 {
		t.Errorf("unexpected info %+v", doc.Info)
	}
}

func TestDOCXParser_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := ExtractFile(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Path != path {
		t.Errorf("expected path %q, got %q", path, pe.Path)
	}
}

func TestDOCXParser_MissingFile(t *testing.T) {
	_, err := ExtractFile(filepath.Join(t.TempDir(), "missing.docx"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

// writeTestPDF writes a minimal uncompressed PDF. Each inner slice is one page;
// each string on a page is placed 40pt below the previous one.
func writeTestPDF(t *testing.T, path string, pages [][]string) {
	t.Helper()
	var objs []string
	var kids []string
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, lines := range pages {
		var cs strings.Builder
		y := 750
		for _, line := range lines {
			fmt.Fprintf(&cs, "BT /F1 12 Tf 1 0 0 1 72 %d Tm (%s) Tj ET\n", y, line)
			y -= 40
		}
		content := cs.String()
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf strings.Builder
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func TestPDFParser_TextBlocksAcrossPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.pdf")
	writeTestPDF(t, path, [][]string{
		{"Payment terms", "Delivery schedule"},
		{"Liability cap"},
	})

	doc, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Info.SourceKind != contract.SourcePDF {
		t.Errorf("expected source kind %q, got %q", contract.SourcePDF, doc.Info.SourceKind)
	}
	if doc.Info.PageOrTableCount != 2 {
		t.Errorf("expected 2 pages, got %d", doc.Info.PageOrTableCount)
	}
	if doc.Info.ParagraphCount != 3 {
		t.Fatalf("expected 3 text blocks, got %d: %q", doc.Info.ParagraphCount, doc.Paragraphs)
	}
	if last := doc.Paragraphs[2]; last != "Liability cap" {
		t.Errorf("expected last block from page 2, got %q", last)
	}
	for _, want := range []string{"Payment terms", "Delivery schedule", "Liability cap"} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("expected text to contain %q, got %q", want, doc.Text)
		}
	}
	if strings.Count(doc.Text, "\n\n") != 2 {
		t.Errorf("expected blocks joined by blank lines, got %q", doc.Text)
	}
}

func TestPDFParser_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &PDFParser{}
	_, err := p.Parse(path)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestRowBlocks_SplitsOnVerticalGap(t *testing.T) {
	row := func(y int64, parts ...string) *pdflib.Row {
		r := &pdflib.Row{Position: y}
		for _, p := range parts {
			r.Content = append(r.Content, pdflib.Text{FontSize: 12, S: p})
		}
		return r
	}
	rows := pdflib.Rows{
		row(700, "第一条 ", "付款"),
		row(688, "甲方应在验收合格后90日内支付款项。"),
		row(676, "  "),
		row(640, "第二条 违约责任"),
	}

	got := rowBlocks(rows)
	want := []string{"第一条 付款\n甲方应在验收合格后90日内支付款项。", "第二条 违约责任"}
	if len(got) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("block %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	if rowBlocks(nil) != nil {
		t.Error("expected no blocks for an empty page")
	}
}

func TestSplitPages_TrailingFormFeed(t *testing.T) {
	pages := splitPages("one\ftwo\f")
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
}
