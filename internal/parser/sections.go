package parser

import (
	"regexp"
	"strings"

	"github.com/dgallion1/contractreview/internal/contract"
)

// clauseHeading matches lines that open a clause or chapter:
// "第一条", "第3章", "一、", "1.", "2.1 " and similar.
var clauseHeading = regexp.MustCompile(`^(第[一二三四五六七八九十百千零〇两\d]+[条章节款部分]|[一二三四五六七八九十]+[、.．]|\d+(\.\d+)*[.、．\s])`)

var coreKeywords = []string{"违约", "责任", "赔偿", "付款", "支付"}

// ClassifySections sorts the non-blank lines of a contract into general, core
// and other buckets. A heading line containing a liability or payment keyword
// opens a core section, any other heading opens a general section, and lines
// stay in the current section until the next heading. Best effort only.
func ClassifySections(text string) contract.Sections {
	var s contract.Sections
	current := &s.Other
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if clauseHeading.MatchString(line) {
			if containsAny(line, coreKeywords) {
				current = &s.Core
			} else {
				current = &s.General
			}
		}
		*current = append(*current, line)
	}
	return s
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
