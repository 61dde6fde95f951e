package extraction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/psuscan/internal/models"
)

// targetStrings lists the textual forms a target may take in a filing
func targetStrings(target float64) []string {
	if target == math.Trunc(target) {
		return []string{fmt.Sprintf("$%.2f", target), fmt.Sprintf("$%d", int64(target))}
	}
	return []string{"$" + strconv.FormatFloat(target, 'f', -1, 64)}
}

// Snippets returns one context window per target whose text form occurs in content
func (e *TargetExtractor) Snippets(content string, targets []float64, filing models.Filing) []models.ContentSnippet {
	radius := e.thresholds.SnippetRadius
	if radius <= 0 {
		radius = DefaultThresholds().SnippetRadius
	}

	var out []models.ContentSnippet
	for _, t := range targets {
		for _, s := range targetStrings(t) {
			pos := strings.Index(content, s)
			if pos < 0 {
				continue
			}
			out = append(out, models.ContentSnippet{
				FilingDate:   filing.FilingDate,
				FilingURL:    filing.FilingURL,
				TargetFound:  t,
				TargetString: s,
				Context:      window(content, pos, radius),
				Position:     pos,
			})
			break
		}
	}
	return out
}

// window slices ±radius bytes around pos, widened to rune boundaries
func window(content string, pos, radius int) string {
	start := pos - radius
	if start < 0 {
		start = 0
	}
	end := pos + radius
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	return content[start:end]
}
