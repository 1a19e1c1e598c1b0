package render

import (
	"reflect"
	"testing"
)

func TestParseMarkdown_RoundTrip(t *testing.T) {
	blocks := ParseMarkdown("### Title\n- item1\n- item2\n\n**bold** normal")

	want := []Block{
		{Kind: BlockHeading, Level: 3, Text: "Title"},
		{Kind: BlockBullet, Runs: []Run{{Text: "item1"}}},
		{Kind: BlockBullet, Runs: []Run{{Text: "item2"}}},
		{Kind: BlockBreak},
		{Kind: BlockParagraph, Runs: []Run{{Text: "bold", Bold: true}, {Text: " normal"}}},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Fatalf("unexpected blocks:\n got %+v\nwant %+v", blocks, want)
	}
}

func TestParseMarkdown_Table(t *testing.T) {
	blocks := ParseMarkdown("| header | header |\n|---|---|\n| a | b |")
	if len(blocks) != 1 || blocks[0].Kind != BlockTable {
		t.Fatalf("expected a single table block, got %+v", blocks)
	}
	tbl := blocks[0].Table
	if len(tbl.Columns) != 2 {
		t.Errorf("expected 2 columns, got %d", len(tbl.Columns))
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("expected 1 data row, got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][0] != "a" || tbl.Rows[0][1] != "b" {
		t.Errorf("unexpected row %q", tbl.Rows[0])
	}
}

func TestParseMarkdown_TableDetails(t *testing.T) {
	src := "| 原条款内容 | 风险说明 | 修改建议 | 修改后建议文本 |\n" +
		"| :--- | :--- | :--- | :--- |\n" +
		"| 90日内付款 | 周期过长 | 缩短 | 30日内付款 |\n" +
		"\n" +
		"| 违约金5% | **过高** |\n" +
		"| 1 | 2 | 3 | 4 | 5 |\n" +
		"\n" +
		"之后的段落"
	blocks := ParseMarkdown(src)

	if len(blocks) != 3 {
		t.Fatalf("expected table, break, paragraph; got %d blocks: %+v", len(blocks), blocks)
	}
	tbl := blocks[0].Table
	if blocks[0].Kind != BlockTable || len(tbl.Columns) != 4 {
		t.Fatalf("expected 4-column table, got %+v", blocks[0])
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected blank line inside table to keep it open with 3 rows, got %d", len(tbl.Rows))
	}
	for i, row := range tbl.Rows {
		if len(row) != 4 {
			t.Errorf("row %d: expected 4 cells, got %d", i, len(row))
		}
	}
	if tbl.Rows[1][1] != "**过高**" || tbl.Rows[1][2] != "" {
		t.Errorf("expected short row padded, got %q", tbl.Rows[1])
	}
	if tbl.Rows[2][3] != "4" {
		t.Errorf("expected long row cut to width, got %q", tbl.Rows[2])
	}
	if blocks[1].Kind != BlockBreak || blocks[2].Kind != BlockParagraph {
		t.Errorf("expected break then paragraph after the table, got %v %v", blocks[1].Kind, blocks[2].Kind)
	}
}

func TestParseMarkdown_HeadingLevelsAndBullets(t *testing.T) {
	blocks := ParseMarkdown("#### 风险点1: 付款周期过长\n##### 细节\n• 条款引用: 第三条\n- **风险等级:** 高")
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}
	if blocks[0].Level != 4 || blocks[0].Text != "风险点1: 付款周期过长" {
		t.Errorf("unexpected heading %+v", blocks[0])
	}
	if blocks[1].Level != 5 {
		t.Errorf("expected level 5, got %d", blocks[1].Level)
	}
	if blocks[2].Kind != BlockBullet || PlainText(blocks[2].Runs) != "条款引用: 第三条" {
		t.Errorf("unexpected bullet %+v", blocks[2])
	}
	want := []Run{{Text: "风险等级:", Bold: true}, {Text: " 高"}}
	if !reflect.DeepEqual(blocks[3].Runs, want) {
		t.Errorf("unexpected bullet runs %+v", blocks[3].Runs)
	}
}

func TestParseMarkdown_BlankLines(t *testing.T) {
	blocks := ParseMarkdown("\n\n第一段\n\n\n\n第二段\n\n")
	if len(blocks) != 3 {
		t.Fatalf("expected paragraph, break, paragraph; got %+v", blocks)
	}
	if blocks[1].Kind != BlockBreak {
		t.Errorf("expected consecutive blank lines to collapse into one break")
	}
}

func TestParseRuns(t *testing.T) {
	tests := []struct {
		in   string
		want []Run
	}{
		{"plain", []Run{{Text: "plain"}}},
		{"a **b** c", []Run{{Text: "a "}, {Text: "b", Bold: true}, {Text: " c"}}},
		{"**全部加粗**", []Run{{Text: "全部加粗", Bold: true}}},
		{"a **b", []Run{{Text: "a **b"}}},
		{"**x** y **z", []Run{{Text: "x", Bold: true}, {Text: " y **z"}}},
		{"", []Run{}},
	}
	for _, tt := range tests {
		got := ParseRuns(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseRuns(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPlainReport(t *testing.T) {
	src := "### 风险摘要\n\n**付款周期**过长。\n- 建议缩短至 **30日**\n\n| 原条款内容 | 修改建议 |\n|---|---|\n| 180日内支付 | 30日内支付 |"
	want := "风险摘要\n付款周期过长。\n建议缩短至 30日\n原条款内容 修改建议\n180日内支付 30日内支付"
	if got := PlainReport(src); got != want {
		t.Errorf("PlainReport = %q, want %q", got, want)
	}
	if got := PlainReport(""); got != "" {
		t.Errorf("expected empty plain text, got %q", got)
	}
}
