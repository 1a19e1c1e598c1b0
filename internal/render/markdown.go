package render

import (
	"fmt"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
)

// buildMarkdown assembles the markdown report. The review text is embedded verbatim.
func buildMarkdown(reportText string, meta contract.Metadata, reviewedAt string) []byte {
	var b strings.Builder
	b.WriteString("# " + ReportTitle + "\n\n")

	b.WriteString("## 一、基本信息\n\n")
	for _, kv := range basicInfo(meta, reviewedAt) {
		fmt.Fprintf(&b, "- **%s**: %s\n", kv[0], kv[1])
	}

	b.WriteString("\n## 二、审查要点清单\n\n### 审查维度\n")
	for _, f := range meta.Checklist.FocusDimensions {
		b.WriteString("- " + f + "\n")
	}
	b.WriteString("\n### 具体审查点\n")
	for _, c := range meta.Checklist.Checks {
		fmt.Fprintf(&b, "- **%s**: %s\n", c.Point, c.Logic)
	}

	b.WriteString("\n## 三、审查结果\n\n")
	b.WriteString(reportText)

	b.WriteString("\n\n---\n\n## " + DisclaimerTitle + "\n\n")
	b.WriteString(DisclaimerText + "\n")
	return []byte(b.String())
}
