package render

import (
	"bytes"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"sync"
	"testing/fstest"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/fumiama/go-docx"
)

// Font sizes are in half-points.
const (
	disclaimerSize = "18"
	smallSize      = "18"
	grayColor      = "808080"
)

// headingSizes holds the font size of each heading style. Level 1 is the
// title, level 2 the report sections, 3 to 5 the review headings.
var headingSizes = [...]string{1: "44", 2: "32", 3: "28", 4: "26", 5: "24"}

const templateName = "contractreview"

// reportTemplate is the default go-docx template with Heading1..Heading5
// paragraph styles added, so Word shows the report outline.
var reportTemplate = sync.OnceValues(func() (fs.FS, error) {
	tmpl := fstest.MapFS{}
	for _, name := range docx.DefaultTemplateFilesList {
		data, err := fs.ReadFile(docx.TemplateXMLFS, "xml/default/"+name)
		if err != nil {
			return nil, fmt.Errorf("read docx template %s: %w", name, err)
		}
		if name == "word/styles.xml" {
			data, err = withHeadingStyles(data)
			if err != nil {
				return nil, err
			}
		}
		tmpl["xml/"+templateName+"/"+name] = &fstest.MapFile{Data: data}
	}
	return tmpl, nil
})

func withHeadingStyles(styles []byte) ([]byte, error) {
	const end = "</w:styles>"
	i := bytes.LastIndex(styles, []byte(end))
	if i < 0 {
		return nil, fmt.Errorf("docx template styles: missing %s", end)
	}
	var b strings.Builder
	b.Write(styles[:i])
	for level := 1; level < len(headingSizes); level++ {
		fmt.Fprintf(&b, `<w:style w:type="paragraph" w:styleId="%s"><w:name w:val="heading %d"/><w:basedOn w:val="a"/><w:next w:val="a"/><w:uiPriority w:val="9"/><w:qFormat/>`+
			`<w:pPr><w:keepNext/><w:keepLines/><w:spacing w:before="240" w:after="120"/><w:outlineLvl w:val="%d"/></w:pPr>`+
			`<w:rPr><w:b/><w:bCs/><w:sz w:val="%s"/><w:szCs w:val="%s"/></w:rPr></w:style>`,
			headingStyle(level), level, level-1, headingSizes[level], headingSizes[level])
	}
	b.Write(styles[i:])
	return []byte(b.String()), nil
}

func headingStyle(level int) string {
	return "Heading" + strconv.Itoa(level)
}

// buildDocx assembles the Word report in memory.
func buildDocx(blocks []Block, meta contract.Metadata, reviewedAt string) ([]byte, error) {
	tmpl, err := reportTemplate()
	if err != nil {
		return nil, err
	}
	w := docx.New().UseTemplate(templateName, docx.DefaultTemplateFilesList, tmpl)

	w.AddParagraph().Style(headingStyle(1)).Justification("center").AddText(ReportTitle)

	sectionHeading(w, "一、基本信息")
	info := basicInfo(meta, reviewedAt)
	tbl := w.AddTable(len(info), 2, 0, nil)
	for i, kv := range info {
		tbl.TableRows[i].TableCells[0].AddParagraph().AddText(kv[0]).Bold()
		tbl.TableRows[i].TableCells[1].AddParagraph().AddText(kv[1])
	}

	sectionHeading(w, "二、审查要点清单")
	w.AddParagraph().AddText("【审查维度】").Bold()
	for _, f := range meta.Checklist.FocusDimensions {
		w.AddParagraph().AddText("    • " + f)
	}
	w.AddParagraph().AddText("【具体审查点】").Bold()
	for _, c := range meta.Checklist.Checks {
		p := w.AddParagraph()
		p.AddText("    • ")
		p.AddText(c.Point).Bold()
		if c.Logic != "" {
			w.AddParagraph().AddText("      " + c.Logic).Size(smallSize)
		}
	}

	sectionHeading(w, "三、审查结果")
	for _, b := range blocks {
		addBlock(w, b)
	}

	w.AddParagraph().AddPageBreaks()
	disclaimer := w.AddParagraph()
	disclaimer.AddText(DisclaimerTitle).Bold().Size("28")
	w.AddParagraph().AddText(DisclaimerText).Size(disclaimerSize).Color(grayColor)

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write docx: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionHeading(w *docx.Docx, text string) {
	w.AddParagraph().Style(headingStyle(2)).AddText(text)
}

func addBlock(w *docx.Docx, b Block) {
	switch b.Kind {
	case BlockHeading:
		level := min(max(b.Level, 3), len(headingSizes)-1)
		w.AddParagraph().Style(headingStyle(level)).AddText(b.Text)
	case BlockBullet:
		p := w.AddParagraph()
		p.AddText("• ")
		addRuns(p, b.Runs)
	case BlockParagraph:
		addRuns(w.AddParagraph(), b.Runs)
	case BlockBreak:
		w.AddParagraph()
	case BlockTable:
		addTable(w, b.Table)
	}
}

func addRuns(p *docx.Paragraph, runs []Run) {
	for _, r := range runs {
		run := p.AddText(r.Text)
		if r.Bold {
			run.Bold()
		}
	}
}

func addTable(w *docx.Docx, t *Table) {
	cols := len(t.Columns)
	if cols == 0 {
		return
	}
	tbl := w.AddTable(len(t.Rows)+1, cols, 0, nil)
	for j, h := range t.Columns {
		tbl.TableRows[0].TableCells[j].AddParagraph().AddText(h).Bold()
	}
	for i, row := range t.Rows {
		for j, cell := range row {
			addRuns(tbl.TableRows[i+1].TableCells[j].AddParagraph(), ParseRuns(cell))
		}
	}
}

// basicInfo returns the label/value rows of the basic-information section.
func basicInfo(meta contract.Metadata, reviewedAt string) [][2]string {
	return [][2]string{
		{"合同名称", orUnknown(meta.ContractName)},
		{"客户身份", orUnknown(meta.ClientRole)},
		{"合同类型", orUnknown(meta.ContractType)},
		{"审查时间", reviewedAt},
		{"审查要点数量", strconv.Itoa(len(meta.Checklist.Checks))},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
