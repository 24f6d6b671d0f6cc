package api

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/grainstats/basis-tracker/internal/model"
)

// foldTransformer strips diacritics by decomposing and dropping
// combining marks.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName normalizes a facility or company name for matching: lowercase
// with diacritics removed, so "Híjar Grain" matches "hijar".
func foldName(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// FilterByName keeps facilities whose name or company contains the query
// under folded comparison.
func FilterByName(facilities []model.NearbyFacility, query string) []model.NearbyFacility {
	needle := foldName(strings.TrimSpace(query))
	if needle == "" {
		return facilities
	}
	out := make([]model.NearbyFacility, 0, len(facilities))
	for _, f := range facilities {
		if strings.Contains(foldName(f.Name), needle) || strings.Contains(foldName(f.Company), needle) {
			out = append(out, f)
		}
	}
	return out
}
