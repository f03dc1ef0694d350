package tax

import (
	"strings"
	"unicode"
)

var canonicalStates = map[string]struct{}{
	"andhrapradesh": {}, "arunachalpradesh": {}, "assam": {}, "bihar": {}, "chhattisgarh": {},
	"goa": {}, "gujarat": {}, "haryana": {}, "himachalpradesh": {}, "jharkhand": {},
	"karnataka": {}, "kerala": {}, "madhyapradesh": {}, "maharashtra": {}, "manipur": {},
	"meghalaya": {}, "mizoram": {}, "nagaland": {}, "odisha": {}, "punjab": {},
	"rajasthan": {}, "sikkim": {}, "tamilnadu": {}, "telangana": {}, "tripura": {},
	"uttarpradesh": {}, "uttarakhand": {}, "westbengal": {},
	"andamanandnicobarislands": {}, "chandigarh": {}, "dadraandnagarhavelianddamananddiu": {},
	"delhi": {}, "jammuandkashmir": {}, "ladakh": {}, "lakshadweep": {}, "puducherry": {},
}

// stateAliases maps vehicle-registration codes and legacy names to canonical keys.
var stateAliases = map[string]string{
	"ap": "andhrapradesh",
	"ar": "arunachalpradesh",
	"as": "assam",
	"br": "bihar",
	"cg": "chhattisgarh",
	"ct": "chhattisgarh",
	"ga": "goa",
	"gj": "gujarat",
	"hr": "haryana",
	"hp": "himachalpradesh",
	"jh": "jharkhand",
	"ka": "karnataka",
	"kl": "kerala",
	"mp": "madhyapradesh",
	"mh": "maharashtra",
	"mn": "manipur",
	"ml": "meghalaya",
	"mz": "mizoram",
	"nl": "nagaland",
	"od": "odisha",
	"or": "odisha",
	"orissa": "odisha",
	"pb": "punjab",
	"rj": "rajasthan",
	"sk": "sikkim",
	"tn": "tamilnadu",
	"ts": "telangana",
	"tg": "telangana",
	"tr": "tripura",
	"up": "uttarpradesh",
	"uk": "uttarakhand",
	"ut": "uttarakhand",
	"uttaranchal": "uttarakhand",
	"wb": "westbengal",
	"an": "andamanandnicobarislands",
	"ch": "chandigarh",
	"dn": "dadraandnagarhavelianddamananddiu",
	"dd": "dadraandnagarhavelianddamananddiu",
	"dl": "delhi",
	"newdelhi": "delhi",
	"nctofdelhi": "delhi",
	"jk": "jammuandkashmir",
	"la": "ladakh",
	"ld": "lakshadweep",
	"py": "puducherry",
	"pondicherry": "puducherry",
}

// NormalizeState lower-cases the input, drops every non-letter and resolves
// abbreviations. It returns "" when the state cannot be resolved.
func NormalizeState(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	key := b.String()
	if key == "" {
		return ""
	}
	if canonical, ok := stateAliases[key]; ok {
		return canonical
	}
	if _, ok := canonicalStates[key]; ok {
		return key
	}
	return ""
}

// SameState reports whether both inputs resolve to the same known state.
func SameState(a, b string) bool {
	na := NormalizeState(a)
	if na == "" {
		return false
	}
	return na == NormalizeState(b)
}
