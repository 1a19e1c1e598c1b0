package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files.
type DOCXParser struct{}

func (p *DOCXParser) Parse(path string) (*contract.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, parseErr(path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, parseErr(path, fmt.Errorf("stat: %w", err))
	}

	doc, err := docx.Parse(f, st.Size())
	if err != nil {
		return nil, parseErr(path, fmt.Errorf("parse docx: %w", err))
	}

	var paragraphs []string
	var tables [][][]string
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if text := docxParagraphText(it); text != "" {
				paragraphs = append(paragraphs, text)
			}
		case *docx.Table:
			tables = append(tables, docxTableGrid(it))
		}
	}

	return &contract.Document{
		Text:       strings.Join(paragraphs, "\n\n"),
		Paragraphs: paragraphs,
		Tables:     tables,
		Info: contract.DocumentInfo{
			SourceKind:       contract.SourceWord,
			ParagraphCount:   len(paragraphs),
			PageOrTableCount: len(tables),
		},
	}, nil
}

func docxTableGrid(tbl *docx.Table) [][]string {
	grid := make([][]string, 0, len(tbl.TableRows))
	for _, row := range tbl.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, cell := range row.TableCells {
			parts := make([]string, 0, len(cell.Paragraphs))
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.TrimSpace(strings.Join(parts, "\n")))
		}
		grid = append(grid, cells)
	}
	return grid
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
