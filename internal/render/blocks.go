package render

import "strings"

// BlockKind identifies one element of a parsed report.
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockBullet
	BlockParagraph
	BlockTable
	BlockBreak
)

func (k BlockKind) String() string {
	switch k {
	case BlockHeading:
		return "heading"
	case BlockBullet:
		return "bullet"
	case BlockParagraph:
		return "paragraph"
	case BlockTable:
		return "table"
	case BlockBreak:
		return "break"
	default:
		return "unknown"
	}
}

// Run is a span of inline text.
type Run struct {
	Text string
	Bold bool
}

// Table is a pipe table. Columns comes from the first row; every data row
// has exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Block is one element of a parsed report. Level and Text are set for
// headings, Runs for bullets and paragraphs, Table for tables.
type Block struct {
	Kind  BlockKind
	Level int
	Text  string
	Runs  []Run
	Table *Table
}

var headingPrefixes = []struct {
	prefix string
	level  int
}{
	{"### ", 3},
	{"#### ", 4},
	{"##### ", 5},
}

// ParseMarkdown parses the report markdown subset in a single forward pass.
//
// Headings are "### ", "#### " and "##### " lines. Bullets start with "- "
// or "• ". A line starting with "|" opens a table or adds a row to the open
// one; separator rows are skipped. A blank line yields one break before the
// next block, except between rows of the same table. Anything else is a
// paragraph with inline **bold** spans.
func ParseMarkdown(src string) []Block {
	var (
		blocks  []Block
		table   *Table
		pending bool
	)

	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			pending = true
			continue
		}

		if strings.HasPrefix(line, "|") && table != nil {
			pending = false
			if !isSeparatorRow(line) {
				table.Rows = append(table.Rows, fitRow(splitRow(line), len(table.Columns)))
			}
			continue
		}

		table = nil
		if pending && len(blocks) > 0 {
			blocks = append(blocks, Block{Kind: BlockBreak})
		}
		pending = false

		if strings.HasPrefix(line, "|") {
			table = &Table{Columns: splitRow(line)}
			blocks = append(blocks, Block{Kind: BlockTable, Table: table})
			continue
		}
		if b, ok := parseHeading(line); ok {
			blocks = append(blocks, b)
			continue
		}
		if rest, ok := cutBullet(line); ok {
			blocks = append(blocks, Block{Kind: BlockBullet, Runs: ParseRuns(rest)})
			continue
		}
		blocks = append(blocks, Block{Kind: BlockParagraph, Runs: ParseRuns(line)})
	}
	return blocks
}

func parseHeading(line string) (Block, bool) {
	for _, h := range headingPrefixes {
		if rest, ok := strings.CutPrefix(line, h.prefix); ok {
			return Block{Kind: BlockHeading, Level: h.level, Text: strings.TrimSpace(rest)}, true
		}
	}
	return Block{}, false
}

func cutBullet(line string) (string, bool) {
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		return rest, true
	}
	if rest, ok := strings.CutPrefix(line, "• "); ok {
		return rest, true
	}
	return "", false
}

// splitRow returns the trimmed cells of a pipe row. Leading and trailing
// pipes are optional.
func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// isSeparatorRow reports whether line is made only of pipes, dashes, colons
// and spaces with at least one dash, as in "|---|" or "| :--- | ---: |".
func isSeparatorRow(line string) bool {
	dash := false
	for _, r := range line {
		switch r {
		case '-':
			dash = true
		case '|', ':', ' ', '\t':
		default:
			return false
		}
	}
	return dash
}

// fitRow pads or cuts cells to width.
func fitRow(cells []string, width int) []string {
	row := make([]string, width)
	copy(row, cells)
	return row
}

// ParseRuns splits line on "**" into alternating plain and bold runs.
// An unmatched trailing "**" is kept as literal text.
func ParseRuns(line string) []Run {
	parts := strings.Split(line, "**")
	if len(parts)%2 == 0 {
		last := parts[len(parts)-1]
		parts = parts[:len(parts)-1]
		parts[len(parts)-1] += "**" + last
	}

	runs := make([]Run, 0, len(parts))
	for i, p := range parts {
		if p == "" {
			continue
		}
		runs = append(runs, Run{Text: p, Bold: i%2 == 1})
	}
	return runs
}

// PlainText joins runs without formatting.
func PlainText(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// PlainReport strips report markdown down to one line per block and table row.
// Table cells are separated by a space.
func PlainReport(src string) string {
	var lines []string
	for _, b := range ParseMarkdown(src) {
		switch b.Kind {
		case BlockHeading:
			lines = append(lines, b.Text)
		case BlockBullet, BlockParagraph:
			lines = append(lines, PlainText(b.Runs))
		case BlockTable:
			lines = append(lines, strings.Join(b.Table.Columns, " "))
			for _, row := range b.Table.Rows {
				lines = append(lines, strings.Join(row, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
