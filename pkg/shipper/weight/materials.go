package weight

import (
	"context"
	"strings"
	"unicode"

	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// DefaultMaterial is assumed when a product names an unknown material.
const DefaultMaterial = "9pt cardstock"

// materials maps canonical material names to pounds per square inch.
var materials = map[string]float64{
	"9pt cardstock":    0.000215,
	"10pt cardstock":   0.000238,
	"12pt cardstock":   0.000286,
	"14pt cardstock":   0.000333333333,
	"16pt cardstock":   0.000381,
	"80lb gloss text":  0.000164,
	"100lb gloss text": 0.000205,
	"13oz vinyl":       0.000627,
	"4mm coroplast":    0.00486,
}

// aliases maps normalized spellings to canonical material names.
var aliases = map[string]string{}

func init() {
	extra := map[string][]string{
		"9pt cardstock":    {"9pt", "9pt card", "9 point cardstock"},
		"10pt cardstock":   {"10pt", "10pt card"},
		"12pt cardstock":   {"12pt", "12pt card"},
		"14pt cardstock":   {"14pt", "14pt card", "14 point cardstock"},
		"16pt cardstock":   {"16pt", "16pt card", "16 point cardstock"},
		"80lb gloss text":  {"80lb text", "80# gloss text", "80lb gloss"},
		"100lb gloss text": {"100lb text", "100# gloss text", "100lb gloss"},
		"13oz vinyl":       {"vinyl", "13oz banner", "13 oz vinyl banner"},
		"4mm coroplast":    {"coroplast", "corrugated plastic", "4mm corrugated plastic"},
	}
	for canonical, names := range extra {
		aliases[normalize(canonical)] = canonical
		for _, n := range names {
			aliases[normalize(n)] = canonical
		}
	}
}

// MaterialWeight returns the weight per square inch of a material. Matching
// ignores case, spacing and punctuation. Unknown materials return the
// DefaultMaterial weight and false.
func MaterialWeight(name string) (float64, bool) {
	if canonical, ok := aliases[normalize(name)]; ok {
		return materials[canonical], true
	}
	return materials[DefaultMaterial], false
}

// Item is one printed product line of a cart.
type Item struct {
	Material string
	Width    float64
	Height   float64
	Quantity int
}

// Model computes cart weights and reports material lookups that fell back to
// the default.
type Model struct {
	logger *otelzap.Logger
}

// NewModel creates a weight model.
func NewModel(logger *otelzap.Logger) *Model {
	return &Model{logger: logger}
}

// ItemWeight returns the product weight of one cart item.
func (m *Model) ItemWeight(ctx context.Context, item Item) float64 {
	perSqIn, known := MaterialWeight(item.Material)
	if !known {
		m.logger.Ctx(ctx).Warn("Unknown material, using default weight",
			zap.String("material", item.Material),
			zap.String("default_material", DefaultMaterial),
		)
	}
	return Weight(perSqIn, item.Width, item.Height, item.Quantity)
}

// CartWeight returns the summed product weight of all items.
func (m *Model) CartWeight(ctx context.Context, items []Item) float64 {
	var total float64
	for _, it := range items {
		total += m.ItemWeight(ctx, it)
	}
	return total
}

func normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
