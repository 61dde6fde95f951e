// -----------------------------------------------------------------------
// Target extraction - pulls candidate PSU price targets out of filing text
// -----------------------------------------------------------------------

package extraction

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Thresholds bound the candidates the engine keeps
type Thresholds struct {
	MinPrice      float64 // smallest plausible target
	MaxPrice      float64 // largest plausible target
	MinUpside     float64 // fraction, inclusive
	MaxUpside     float64 // fraction, inclusive
	MinTargets    int
	SnippetRadius int
}

// DefaultThresholds returns the production bounds
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinPrice:      5.0,
		MaxPrice:      500.0,
		MinUpside:     0.10,
		MaxUpside:     10.0,
		MinTargets:    2,
		SnippetRadius: 500,
	}
}

// TargetExtractor turns filing text into sorted, de-duplicated candidate targets
type TargetExtractor struct {
	thresholds      Thresholds
	psuKeywords     []string
	excludeKeywords []string
}

// NewTargetExtractor creates an extractor with the default keyword lists
func NewTargetExtractor(thresholds Thresholds) *TargetExtractor {
	return &TargetExtractor{
		thresholds:      thresholds,
		psuKeywords:     DefaultPSUKeywords,
		excludeKeywords: DefaultExcludeKeywords,
	}
}

// Thresholds returns the bounds in use
func (e *TargetExtractor) Thresholds() Thresholds {
	return e.thresholds
}

// Extract runs ExtractWith using the extractor's keyword lists
func (e *TargetExtractor) Extract(text string) []float64 {
	return e.ExtractWith(text, e.psuKeywords, e.excludeKeywords)
}

// ExtractWith returns candidate targets found in text.
// Sections are kept when they contain a PSU keyword and no exclude keyword.
// Tiers run in order (ranges, primary, secondary); a later tier only runs
// when every earlier tier found nothing across all sections.
func (e *TargetExtractor) ExtractWith(text string, psuKeywords, excludeKeywords []string) []float64 {
	if text == "" {
		return nil
	}

	sections := relevantSections(text, psuKeywords, excludeKeywords)
	if len(sections) == 0 {
		return nil
	}

	var raw []float64
	for _, tier := range [][]*regexp.Regexp{rangePatterns, primaryPatterns, secondaryPatterns} {
		raw = matchAll(sections, tier)
		if len(raw) > 0 {
			break
		}
	}

	return e.filter(raw)
}

// filter applies the plausibility bounds, dedupes and sorts ascending
func (e *TargetExtractor) filter(raw []float64) []float64 {
	seen := make(map[float64]struct{}, len(raw))
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v < e.thresholds.MinPrice || v > e.thresholds.MaxPrice {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// splitSections breaks text into sentence-like sections without cutting
// "$X.Y" decimals or "$X to $Y" ranges.
func splitSections(text string) []string {
	protected := protectRange.ReplaceAllString(text, "${1}"+rangeMarker+"${2}")
	protected = protectDecimal.ReplaceAllString(protected, "${1}"+decimalMarker+"${2}")

	restore := strings.NewReplacer(rangeMarker, " to ", decimalMarker, ".")

	parts := sentenceSplit.Split(protected, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(restore.Replace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func relevantSections(text string, psuKeywords, excludeKeywords []string) []string {
	psu := lowerAll(psuKeywords)
	exclude := lowerAll(excludeKeywords)

	var out []string
	for _, section := range splitSections(text) {
		lower := strings.ToLower(section)
		if !containsAny(lower, psu) || containsAny(lower, exclude) {
			continue
		}
		out = append(out, section)
	}
	return out
}

func matchAll(sections []string, patterns []*regexp.Regexp) []float64 {
	var out []float64
	for _, section := range sections {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(section, -1) {
				for _, group := range m[1:] {
					if group == "" {
						continue
					}
					v, err := strconv.ParseFloat(group, 64)
					if err != nil {
						continue
					}
					out = append(out, v)
				}
			}
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
