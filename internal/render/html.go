package render

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/contractreview/internal/contract"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

var htmlMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

const htmlStyle = `body{font-family:"SimSun","Songti SC",serif;max-width:960px;margin:2em auto;line-height:1.6}
table{border-collapse:collapse;margin:1em 0}th,td{border:1px solid #999;padding:4px 8px}
hr+h2,hr+h2+p{color:#808080;font-size:0.9em}`

// buildHTML converts the markdown report into a standalone page. Raw HTML in
// the review text is not passed through.
func buildHTML(reportText string, meta contract.Metadata, reviewedAt string) ([]byte, error) {
	var body bytes.Buffer
	if err := htmlMarkdown.Convert(buildMarkdown(reportText, meta, reviewedAt), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html lang=\"zh-CN\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", html.EscapeString(ReportTitle+" - "+meta.ContractName))
	fmt.Fprintf(&out, "<style>\n%s\n</style>\n</head>\n<body>\n", htmlStyle)
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}
