package extraction

import "regexp"

// DefaultPSUKeywords mark sentences that talk about performance awards
var DefaultPSUKeywords = []string{
	"PSU", "performance stock unit", "performance unit", "performance share",
	"performance-based", "performance target", "performance goal",
	"vest", "vesting", "vesting schedule", "vesting condition",
	"target", "hurdle", "threshold", "performance metric",
}

// DefaultExcludeKeywords mark sentences whose dollar amounts are not award targets
var DefaultExcludeKeywords = []string{
	"warrant", "exercise price", "exercise of warrant",
	"transaction cost", "advisory cost", "legal fee", "accounting fee",
	"merger", "acquisition", "exchange offer", "tender offer",
	"dividend", "distribution", "split", "spinoff",
	"underwriting", "commission", "expense", "fee",
	"registration", "prospectus", "offering price",
	"market price", "closing price", "trading price",
	"book value", "net worth", "assets", "liabilities",
}

const amount = `\$(\d+(?:\.\d+)?)`

// rangePatterns capture two-sided ranges; every group is a candidate
var rangePatterns = compileAll(
	`(?i)target.*?ranging?\s+from\s+`+amount+`\s+to\s+`+amount,
	`(?i)price.*?target.*?`+amount+`\s+to\s+`+amount,
	`(?i)target.*?`+amount+`\s+to\s+`+amount,
	`(?i)from\s+`+amount+`\s+to\s+`+amount,
	`(?i)`+amount+`\s+to\s+`+amount,
	`(?i)`+amount+`\s*[-–]\s*`+amount,
	`(?i)between\s+`+amount+`\s+and\s+`+amount,
)

// primaryPatterns tie a single value to award or vesting vocabulary
var primaryPatterns = compileAll(
	`(?i)PSU.*?`+amount,
	`(?i)performance\s+stock\s+unit.*?`+amount,
	`(?i)performance.*?target.*?`+amount,
	`(?i)stock\s+price\s+target.*?`+amount,
	`(?i)price\s+target.*?`+amount,
	`(?i)performance\s+goal.*?`+amount,
	`(?i)vesting.*?target.*?`+amount,
)

// secondaryPatterns are the looser, higher-recall fallback
var secondaryPatterns = compileAll(
	`(?i)performance.*?`+amount,
	`(?i)target.*?`+amount,
	`(?i)goal.*?`+amount,
	`(?i)hurdle.*?`+amount,
)

var (
	// protectRange keeps "$X to $Y" in one piece through sentence splitting
	protectRange = regexp.MustCompile(`(\$\d+(?:\.\d+)?)\s+to\s+(\$\d+(?:\.\d+)?)`)
	// protectDecimal keeps the decimal point of "$X.Y" from ending a sentence
	protectDecimal = regexp.MustCompile(`(\$\d+)\.(\d+)`)
	sentenceSplit  = regexp.MustCompile(`[.!?]`)
)

const (
	rangeMarker   = "_TO_"
	decimalMarker = "_DOT_"
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}
