// Package extract pulls typed pivots out of unstructured record content so
// free-text observations can still join the pivot index.
package extract

import (
	"regexp"
	"strings"

	"github.com/regimeiq/osint-threat-monitor/internal/models"
)

type iocPattern struct {
	pivotType models.PivotType
	re        *regexp.Regexp
}

// Pattern order matters: later types may match substrings of earlier ones
// (a sha256 contains runs matching md5), so dedup runs on normalized
// (type, value) pairs and each pattern anchors on word boundaries.
var iocPatterns = []iocPattern{
	{models.PivotCVE, regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)},
	{models.PivotIPv4, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|1?\d?\d)\b`)},
	{models.PivotURL, regexp.MustCompile(`(?i)\bhttps?://[^\s<>'")]+`)},
	{models.PivotEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,24}\b`)},
	{models.PivotDomain, regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[A-Za-z]{2,24}\b`)},
	{models.PivotSHA256, regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
	{models.PivotSHA1, regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)},
	{models.PivotMD5, regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)},
}

var (
	urlPattern   = regexp.MustCompile(`(?i)\bhttps?://[^\s<>'")]+`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,24}\b`)
)

// Pivots extracts indicator pivots from free text. Bare domains that sit
// inside a URL or email address are suppressed, since the containing
// artifact is already captured with more context.
func Pivots(text string) []models.Pivot {
	if text == "" {
		return nil
	}

	type span struct{ start, end int }
	var skip []span
	for _, pattern := range []*regexp.Regexp{urlPattern, emailPattern} {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			skip = append(skip, span{loc[0], loc[1]})
		}
	}
	overlapsSkip := func(start, end int) bool {
		for _, s := range skip {
			if start < s.end && end > s.start {
				return true
			}
		}
		return false
	}

	hashSpans := make([]span, 0)
	coveredByHash := func(start, end int) bool {
		for _, s := range hashSpans {
			if start >= s.start && end <= s.end {
				return true
			}
		}
		return false
	}

	seen := make(map[models.Pivot]struct{})
	var out []models.Pivot
	for _, ioc := range iocPatterns {
		for _, loc := range ioc.re.FindAllStringIndex(text, -1) {
			if ioc.pivotType == models.PivotDomain && overlapsSkip(loc[0], loc[1]) {
				continue
			}
			switch ioc.pivotType {
			case models.PivotSHA256, models.PivotSHA1, models.PivotMD5:
				if coveredByHash(loc[0], loc[1]) {
					continue
				}
				hashSpans = append(hashSpans, span{loc[0], loc[1]})
			}
			pivot := models.Pivot{
				Type:  ioc.pivotType,
				Value: normalize(ioc.pivotType, text[loc[0]:loc[1]]),
			}
			if _, dup := seen[pivot]; dup {
				continue
			}
			seen[pivot] = struct{}{}
			out = append(out, pivot)
		}
	}
	return out
}

// Enrich appends extracted pivots to the record, skipping any it already
// carries.
func Enrich(rec models.Record) models.Record {
	for _, pivot := range Pivots(rec.Content) {
		if !rec.HasPivot(pivot) {
			rec.Pivots = append(rec.Pivots, pivot)
		}
	}
	return rec
}

func normalize(t models.PivotType, value string) string {
	normalized := strings.Trim(strings.TrimSpace(value), ".,);")
	switch t {
	case models.PivotCVE:
		return strings.ToUpper(normalized)
	case models.PivotDomain, models.PivotEmail, models.PivotMD5, models.PivotSHA1, models.PivotSHA256:
		return strings.ToLower(normalized)
	}
	return normalized
}
