package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultPartyColor is used for parties missing from partyColors
const DefaultPartyColor = "#6C757D"

var partyColors = map[string]string{
	"SPÖ":   "#E31E24",
	"ÖVP":   "#000000",
	"FPÖ":   "#00529B",
	"GRÜNE": "#4CAF50",
	"NEOS":  "#FF6B9D",
	"CSP":   "#FFD700",
	"SdP":   "#FF6B6B",
	"GdP":   "#6C757D",
}

// stateNames maps the parliament's state abbreviations to state names
var stateNames = map[string]string{
	"O":  "Oberösterreich",
	"N":  "Niederösterreich",
	"W":  "Wien",
	"S":  "Salzburg",
	"T":  "Tirol",
	"V":  "Vorarlberg",
	"K":  "Kärnten",
	"B":  "Burgenland",
	"St": "Steiermark",
}

// the code must end at a word boundary so "Unknown District" does not yield "U"
var districtCodePattern = regexp.MustCompile(`^([A-Z0-9]+)\b`)

// PartyColor resolves a party's display color
func PartyColor(shortName string) string {
	if color, ok := partyColors[shortName]; ok {
		return color
	}
	return DefaultPartyColor
}

// StateShortCode reverse-looks-up a state name, falling back to its first two letters
func StateShortCode(name string) string {
	for code, stateName := range stateNames {
		if stateName == name {
			return code
		}
	}
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

// DistrictCode returns the leading [A-Z0-9]+ token of a raw district string,
// or the raw string when it has none.
func DistrictCode(raw string) string {
	if m := districtCodePattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// DistrictName strips the code prefix: "4D Traunviertel" -> "Traunviertel"
func DistrictName(raw string) string {
	m := districtCodePattern.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw)
	}
	rest := strings.TrimLeftFunc(strings.TrimPrefix(raw, m[1]), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.TrimSpace(rest)
}
