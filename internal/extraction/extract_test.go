package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/psuscan/internal/models"
)

func newTestExtractor() *TargetExtractor {
	return NewTargetExtractor(DefaultThresholds())
}

func TestExtract_NoKeywordReturnsEmpty(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("The reporting person acquired shares at $45.00 on the open market")
	assert.Empty(t, got)
}

func TestExtract_EmptyText(t *testing.T) {
	assert.Empty(t, newTestExtractor().Extract(""))
}

func TestExtract_ExcludedSentenceDropped(t *testing.T) {
	e := newTestExtractor()

	text := "The warrant has a performance target of $25.00 per share. " +
		"The PSU vests upon a stock price target of $40.00. The second PSU tranche has a target of $60.00."
	got := e.Extract(text)

	assert.NotContains(t, got, 25.0)
	assert.Equal(t, []float64{40, 60}, got)
}

func TestExtract_RangeKeepsDecimals(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("PSU awards vest at stock price targets from $12.50 to $20.00.")
	assert.Equal(t, []float64{12.5, 20}, got)
}

func TestExtract_RangeTierWinsOverPrimary(t *testing.T) {
	e := newTestExtractor()

	// The primary PSU pattern alone would also pick up $8.00 from the second sentence
	text := "Performance stock units vest between $30 and $45. PSU grant valued at $8.00 each"
	got := e.Extract(text)
	assert.Equal(t, []float64{30, 45}, got)
}

func TestExtract_SecondaryOnlyWhenPrimaryEmpty(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("Shares vest once the hurdle of $75 is met")
	assert.Equal(t, []float64{75}, got)
}

func TestExtract_FiltersBoundsAndDedupes(t *testing.T) {
	e := newTestExtractor()

	text := "PSU target $3. PSU target $50. PSU target $50.00. PSU target $900. PSU target $500"
	got := e.Extract(text)
	assert.Equal(t, []float64{50, 500}, got)
}

func TestExtractWith_CustomKeywords(t *testing.T) {
	e := newTestExtractor()

	text := "The milestone award requires a goal of $30 and a second goal of $45"
	assert.Empty(t, e.ExtractWith(text, []string{"PSU"}, nil))
	assert.Equal(t, []float64{30, 45}, e.ExtractWith(text, []string{"milestone"}, nil))
}

func TestSplitSections(t *testing.T) {
	got := splitSections("Targets are $12.50 to $20.00. Next sentence! Another? ")
	assert.Equal(t, []string{"Targets are $12.50 to $20.00", "Next sentence", "Another"}, got)
}

func TestValidate(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name    string
		targets []float64
		price   float64
		want    []float64
	}{
		{"below price dropped", []float64{40, 60}, 50, []float64{60}},
		{"ten percent inclusive", []float64{55}, 50, []float64{55}},
		{"just under ten percent", []float64{54.99}, 50, []float64{}},
		{"thousand percent inclusive", []float64{550}, 50, []float64{550}},
		{"over thousand percent", []float64{551}, 50, []float64{}},
		{"equal to price", []float64{50}, 50, []float64{}},
		{"zero price", []float64{60}, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Validate(tt.targets, tt.price)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsideRange(t *testing.T) {
	nearest, furthest := UpsideRange([]float64{70, 90, 55}, 50)
	assert.Equal(t, 10.0, nearest)
	assert.Equal(t, 80.0, furthest)
}

func TestSnippets(t *testing.T) {
	e := NewTargetExtractor(Thresholds{SnippetRadius: 10})
	filing := models.Filing{FilingDate: "2025-03-01", FilingURL: "https://www.sec.gov/Archives/edgar/data/1/form4.xml"}

	content := "PSU tranche one vests at $40.00 and tranche two at $62.5 per share"
	got := e.Snippets(content, []float64{40, 62.5, 99}, filing)

	require.Len(t, got, 2)
	assert.Equal(t, "$40.00", got[0].TargetString)
	assert.Equal(t, strings.Index(content, "$40.00"), got[0].Position)
	assert.Equal(t, "2025-03-01", got[0].FilingDate)
	assert.Contains(t, got[0].Context, "$40.00")
	assert.LessOrEqual(t, len(got[0].Context), 20)
	assert.Equal(t, "$62.5", got[1].TargetString)
}

func TestSnippets_IntegerFallsBackToPlainForm(t *testing.T) {
	e := newTestExtractor()
	got := e.Snippets("PSU target of $75 per share", []float64{75}, models.Filing{})

	require.Len(t, got, 1)
	assert.Equal(t, "$75", got[0].TargetString)
}
