// Package extract turns raw page text into lightweight tender candidates.
//
// The extractor does not try to satisfy the full record schema. It only
// detects possible tender/RFP items and returns candidates; normalization
// and validation happen downstream. Extraction is pure and deterministic:
// the same (url, text) pair always yields the same candidates.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

// Input and raw-text safety cutoffs.
const (
	maxInputBytes   = 200000
	maxRawTextBytes = 150000
)

// Title heuristic bounds: the first line in this range that is not
// all-lowercase is taken as the page title.
const (
	minTitleLen = 10
	maxTitleLen = 180
)

// CoatingKeywords is the fixed domain keyword list matched during
// extraction.
var CoatingKeywords = []string{
	"epoxy", "polyurethane", "polyurea", "alkyd",
	"waterproof", "waterproofing", "anti-corrosive",
	"fire-retardant", "flooring", "epoxy flooring",
	"shot blast", "sand blast", "hydroblast",
	"surface preparation", "PU membrane", "liquid membrane",
}

var (
	identifierRE  = regexp.MustCompile(`(?i)\b(RFP|RFQ|EOI|Tender|Bid)[\s\-:]*([A-Za-z0-9/\-._]+)`)
	dateWrittenRE = regexp.MustCompile(`(?i)\d{1,2}[ \-/](?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)[a-z]*[ \-/]\d{2,4}`)
	dateISORE     = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	emailRE       = regexp.MustCompile(`[\w.\-]+@[\w.\-]+\.\w+`)
	phoneRE       = regexp.MustCompile(`(?:\+?\d{1,3}[- ]?)?\d{7,12}`)
	documentRE    = regexp.MustCompile(`(?i)https?://[^\s"'<>]+?\.(?:pdf|docx|doc|xlsx)`)
	nonDigitRE    = regexp.MustCompile(`\D`)

	keywordREs = compileKeywordREs(CoatingKeywords)
)

func compileKeywordREs(keywords []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(keywords))
	for i, kw := range keywords {
		res[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
	}
	return res
}

// Extractor implements rfp.Extractor with rule-based heuristics.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// ExtractCandidates scans page text for tender signals and produces zero or
// more candidates. Pages with no identifiers, documents, keywords, or dates
// produce an empty slice, never a placeholder record. Each identifier found
// yields its own candidate sharing the page-level fields.
func (Extractor) ExtractCandidates(url string, pageText string) []rfp.Candidate {
	if pageText == "" {
		return nil
	}
	text := pageText
	if len(text) > maxInputBytes {
		text = text[:maxInputBytes]
	}

	title := titleHeuristic(text)
	identifiers := findIdentifiers(text)
	dates := findDates(text)
	docs := findDocuments(text)
	emails := dedupe(emailRE.FindAllString(text, -1))
	phones := findPhones(text)
	keywords := matchKeywords(text)

	if len(identifiers) == 0 && len(docs) == 0 && len(keywords) == 0 && len(dates) == 0 {
		return nil
	}

	raw := text
	if len(raw) > maxRawTextBytes {
		raw = raw[:maxRawTextBytes]
	}

	base := rfp.Candidate{
		SourceURL:       url,
		Title:           title,
		Dates:           dates,
		Budgets:         []string{},
		ContactEmails:   emails,
		ContactPhones:   phones,
		Documents:       docs,
		MatchedKeywords: keywords,
		RawText:         raw,
	}

	if len(identifiers) == 0 {
		return []rfp.Candidate{base}
	}
	candidates := make([]rfp.Candidate, 0, len(identifiers))
	for _, id := range identifiers {
		c := base
		c.RFPNumber = id
		candidates = append(candidates, c)
	}
	return candidates
}

// titleHeuristic returns the first line of plausible title length that is
// not all-lowercase.
func titleHeuristic(text string) string {
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if len(s) > minTitleLen && len(s) < maxTitleLen && !isAllLower(s) {
			return s
		}
	}
	return ""
}

// isAllLower reports whether s contains at least one cased rune and no
// uppercase runes.
func isAllLower(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			cased = true
		}
	}
	return cased
}

func findIdentifiers(text string) []string {
	var ids []string
	for _, m := range identifierRE.FindAllStringSubmatch(text, -1) {
		id := strings.TrimSpace(m[2])
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func findDates(text string) []string {
	dates := []string{}
	dates = append(dates, dateISORE.FindAllString(text, -1)...)
	dates = append(dates, dateWrittenRE.FindAllString(text, -1)...)
	return dates
}

func findDocuments(text string) []rfp.DocumentLink {
	links := []rfp.DocumentLink{}
	for _, u := range documentRE.FindAllString(text, -1) {
		links = append(links, rfp.DocumentLink{URL: u})
	}
	return links
}

// findPhones normalizes matches to bare digits and keeps plausible lengths
// (7 to 15 digits).
func findPhones(text string) []string {
	seen := make(map[string]struct{})
	phones := []string{}
	for _, m := range phoneRE.FindAllString(text, -1) {
		digits := nonDigitRE.ReplaceAllString(m, "")
		if len(digits) < 7 || len(digits) > 15 {
			continue
		}
		if _, ok := seen[digits]; ok {
			continue
		}
		seen[digits] = struct{}{}
		phones = append(phones, digits)
	}
	return phones
}

func matchKeywords(text string) []string {
	matched := []string{}
	for i, re := range keywordREs {
		if re.MatchString(text) {
			matched = append(matched, CoatingKeywords[i])
		}
	}
	return matched
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := []string{}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
