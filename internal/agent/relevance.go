package agent

import (
	"regexp"
	"strings"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// domainKeywords indicate relevance to the coatings and waterproofing
// business. A record needs at least one hit to reach the downstream store.
var domainKeywords = []string{
	"paint", "coating", "coatings", "waterproof", "waterproofing",
	"anti-corrosive", "anti corrosive", "epoxy", "polyurethane", "pu",
	"structural steel", "steel", "bridge", "roof", "basement", "flooring",
	"floor", "epoxy flooring", "protective coating", "corrosion",
	"surface preparation", "sandblast", "shot blast", "hydroblasting",
	"primer", "topcoat", "industrial coating", "marine coating", "pipeline",
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(strings.ToLower(s), " "))
}

// IsDomainRelevant reports whether a validated record should be forwarded
// to the downstream record store. It is a pure keyword-hit gate over the
// record's text fields, not a scoring function.
func IsDomainRelevant(record rfp.NormalizedRecord) bool {
	var fields []string
	for _, v := range record.CoatingFields {
		fields = append(fields, v)
	}
	fields = append(fields, record.MatchedTerms...)
	fields = append(fields, record.Keywords...)
	if record.Title != nil {
		fields = append(fields, *record.Title)
	}
	if record.Description != nil {
		fields = append(fields, *record.Description)
	}

	var parts []string
	for _, f := range fields {
		if f == "" {
			continue
		}
		parts = append(parts, normalizeText(f))
	}
	combined := strings.Join(parts, " ")
	for _, kw := range domainKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}
