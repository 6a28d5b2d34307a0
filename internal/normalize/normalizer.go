// Package normalize converts raw extraction candidates into canonical
// rfp_record_v1 records.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/AaksharGarg/autorfp-crawler/internal/rfp"
)

const (
	descriptionMaxBytes = 500
	titleIDPrefixBytes  = 64
)

// Normalizer builds normalized records from candidates. Given the same
// candidate and clock reading it always produces the same record.
type Normalizer struct {
	clock rfp.Clock
}

// New builds a Normalizer.
func New(clock rfp.Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Record normalizes one candidate. Every slice and map field of the result
// is non-nil so the JSON form always satisfies the record schema.
func (n *Normalizer) Record(candidate rfp.Candidate) rfp.NormalizedRecord {
	record := rfp.NormalizedRecord{
		ID:             recordID(candidate),
		SourceURL:      candidate.SourceURL,
		SourceDomain:   domainOf(candidate.SourceURL),
		CrawlTimestamp: n.clock.Now().UTC().Format(time.RFC3339),
		Title:          optional(candidate.Title),
		RFPNumber:      optional(candidate.RFPNumber),
		Contact: rfp.Contact{
			Emails: nonNil(candidate.ContactEmails),
			Phones: nonNil(candidate.ContactPhones),
		},
		Description:  snippet(candidate.RawText),
		Documents:    documents(candidate.Documents),
		Keywords:     nonNil(candidate.MatchedKeywords),
		MatchedTerms: nonNil(candidate.MatchedKeywords),
		MatchSignals: map[string]any{
			"keyword_hits": len(candidate.MatchedKeywords),
		},
		Provenance: map[string]string{
			"extractor":  "regex_v1",
			"source_url": candidate.SourceURL,
		},
	}

	record.DateOfPosting, record.DeadlineDate = datesOf(candidate.Dates)
	record.EstimatedBudgetMin, record.EstimatedBudgetMax, record.Currency = budgetsOf(candidate.Budgets)
	return record
}

// recordID uses the explicit tender identifier when the page carried one;
// otherwise it falls back to a stable content hash.
func recordID(candidate rfp.Candidate) string {
	if id := strings.TrimSpace(candidate.RFPNumber); id != "" {
		return id
	}
	return DeterministicID(candidate.SourceURL, candidate.RFPNumber, candidate.Title)
}

// DeterministicID derives a stable record identity from the source URL, the
// tender identifier, and a title prefix. Re-extraction of the same notice
// maps to the same id so persistence stays idempotent.
func DeterministicID(sourceURL, rfpNumber, title string) string {
	if len(title) > titleIDPrefixBytes {
		title = title[:titleIDPrefixBytes]
	}
	key := strings.ToLower(sourceURL) + "|" + strings.ToLower(rfpNumber) + "|" + strings.ToLower(title)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func snippet(text string) *string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) > descriptionMaxBytes {
		text = text[:descriptionMaxBytes]
	}
	return &text
}

// datesOf parses the raw date strings best-effort. With two or more parsed
// dates the earliest is the posting date and the latest the deadline; a
// single date is treated as the deadline. Unparseable strings are skipped.
func datesOf(raw []string) (posting, deadline *string) {
	var parsed []time.Time
	for _, s := range raw {
		t, err := dateparse.ParseAny(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		parsed = append(parsed, t)
	}
	if len(parsed) == 0 {
		return nil, nil
	}
	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Before(parsed[j]) })

	last := parsed[len(parsed)-1].Format("2006-01-02")
	if len(parsed) == 1 {
		return nil, &last
	}
	first := parsed[0].Format("2006-01-02")
	return &first, &last
}

var currencySymbols = []struct {
	marker string
	code   string
}{
	{"₹", "INR"},
	{"rs.", "INR"},
	{"rs ", "INR"},
	{"inr", "INR"},
	{"$", "USD"},
	{"usd", "USD"},
	{"€", "EUR"},
	{"eur", "EUR"},
	{"£", "GBP"},
	{"gbp", "GBP"},
}

// budgetsOf extracts the numeric range and currency from raw budget strings.
func budgetsOf(raw []string) (minBudget, maxBudget *float64, currency *string) {
	var amounts []float64
	var code string
	for _, s := range raw {
		lower := strings.ToLower(s)
		if code == "" {
			for _, sym := range currencySymbols {
				if strings.Contains(lower, sym.marker) {
					code = sym.code
					break
				}
			}
		}
		if v, ok := parseAmount(s); ok {
			amounts = append(amounts, v)
		}
	}
	if len(amounts) == 0 {
		return nil, nil, optional(code)
	}
	sort.Float64s(amounts)
	low, high := amounts[0], amounts[len(amounts)-1]
	return &low, &high, optional(code)
}

func parseAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func documents(links []rfp.DocumentLink) []rfp.Document {
	docs := make([]rfp.Document, 0, len(links))
	for _, link := range links {
		u := link.URL
		doc := rfp.Document{URL: &u}
		if parsed, err := url.Parse(link.URL); err == nil && parsed.Path != "" {
			name := path.Base(parsed.Path)
			if name != "." && name != "/" {
				doc.Filename = &name
				if ext := strings.TrimPrefix(path.Ext(name), "."); ext != "" {
					lowered := strings.ToLower(ext)
					doc.Filetype = &lowered
				}
			}
		}
		docs = append(docs, doc)
	}
	return docs
}
