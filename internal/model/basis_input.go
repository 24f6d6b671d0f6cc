package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// OutlierThresholdCents bounds the "normal" basis range. Values outside
// ±200¢ require explicit confirmation before they are accepted.
const OutlierThresholdCents = 200

// SanitizeBasisInput strips everything from a raw basis entry except
// digits and a single leading minus sign, so the result always has the
// shape `optional '-' + digits`.
func SanitizeBasisInput(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "-") {
		return "-" + strings.ReplaceAll(cleaned[1:], "-", "")
	}
	return strings.ReplaceAll(cleaned, "-", "")
}

// ParseBasisCents sanitizes and parses a raw basis entry into signed
// integer cents. Empty or unparseable input is an error.
func ParseBasisCents(raw string) (int, error) {
	cleaned := SanitizeBasisInput(raw)
	if cleaned == "" || cleaned == "-" {
		return 0, eris.Errorf("basis value %q is not a number", raw)
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, eris.Wrapf(err, "parse basis value %q", raw)
	}
	return n, nil
}

// IsOutlierBasis reports whether a basis value falls outside the normal
// ±200¢ range and should be confirmed before acceptance.
func IsOutlierBasis(cents int) bool {
	return cents < -OutlierThresholdCents || cents > OutlierThresholdCents
}
