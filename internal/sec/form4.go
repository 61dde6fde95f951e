package sec

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ternarybob/psuscan/internal/models"
)

var form4Types = map[string]struct{}{
	"4":      {},
	"FORM 4": {},
	"FORM4":  {},
}

// form4Indicators are URL fragments seen on ownership filings
var form4Indicators = []string{"xslf345", "form4", "form-4", "doc4", "wf-form4", "ownership"}

// otherFormMarkers identify documents that are not ownership filings
var otherFormMarkers = []string{"10-k", "10k", "10-q", "10q", "8-k", "def14a", "s-1", "13d", "13g", "ex-", "exhibit"}

// IsForm4Type reports whether a form type label denotes a Form 4
func IsForm4Type(formType string) bool {
	_, ok := form4Types[strings.ToUpper(strings.TrimSpace(formType))]
	return ok
}

// IsForm4URL reports whether a filing URL plausibly points at a Form 4 document.
// Only absolute http(s) URLs are accepted.
func IsForm4URL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	lower := strings.ToLower(raw)
	for _, m := range otherFormMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, ind := range form4Indicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	if strings.Contains(lower, "/archives/edgar/data/") {
		path := strings.ToLower(u.Path)
		return strings.Contains(path, ".xml") || strings.Contains(path, ".htm") || strings.Contains(path, ".txt")
	}
	return false
}

// FilterForm4 keeps filings that pass both the type and URL checks, newest first
func FilterForm4(filings []models.Filing) []models.Filing {
	out := make([]models.Filing, 0, len(filings))
	for _, f := range filings {
		if IsForm4Type(f.FormType) && IsForm4URL(f.FilingURL) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FilingDate > out[j].FilingDate })
	return out
}
