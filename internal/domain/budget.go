package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Budget is a price band inferred from free text.
type Budget struct {
	Min float64
	Max float64
}

// Contains reports whether price falls inside the band.
func (b Budget) Contains(price float64) bool {
	return price >= b.Min && price <= b.Max
}

// HalfWidth returns half the band width, used to normalize distance
// when scoring prices outside the band.
func (b Budget) HalfWidth() float64 {
	return (b.Max - b.Min) / 2
}

// BudgetExtractor is a pluggable strategy so locale- or catalog-specific
// rules can be swapped without touching the re-ranker.
type BudgetExtractor interface {
	// Extract returns the implied budget band and true, or false when the
	// text carries no price signal.
	Extract(text string) (Budget, bool)
}

// singleFigureSpread is the band applied around a lone "budget 20000"
// style figure.
const singleFigureSpread = 0.20

var (
	// "15000-25000", "15,000 - 25,000", "15k-20k". The leading \b keeps
	// model numbers like "i5-13500" from reading as a price range.
	rangePattern = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)(k|K)?\s*[-–~]\s*(\d[\d,]*(?:\.\d+)?)(k|K)?`)
	// "budget 20000", "price 20k", "under 15000" plus Thai keywords.
	keywordPattern = regexp.MustCompile(`(?i)(?:budget|price|under|within|around|งบ(?:ประมาณ)?|ราคา|ไม่เกิน|ประมาณ)\s*:?\s*(\d[\d,]*(?:\.\d+)?)(k|K)?`)
	// bare "20k" shorthand
	bareKPattern = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)[kK]\b`)
)

type regexBudgetExtractor struct{}

// NewBudgetExtractor creates the default regex-rule extractor for the
// single supported locale.
func NewBudgetExtractor() BudgetExtractor {
	return regexBudgetExtractor{}
}

func (regexBudgetExtractor) Extract(text string) (Budget, bool) {
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		lo := parseFigure(m[1], m[2] != "")
		hi := parseFigure(m[3], m[4] != "")
		if lo > 0 && hi > 0 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return Budget{Min: lo, Max: hi}, true
		}
	}

	if m := keywordPattern.FindStringSubmatch(text); m != nil {
		if n := parseFigure(m[1], m[2] != ""); n > 0 {
			return spread(n), true
		}
	}

	if m := bareKPattern.FindStringSubmatch(text); m != nil {
		if n := parseFigure(m[1], true); n > 0 {
			return spread(n), true
		}
	}

	return Budget{}, false
}

func spread(n float64) Budget {
	return Budget{Min: n * (1 - singleFigureSpread), Max: n * (1 + singleFigureSpread)}
}

func parseFigure(raw string, kSuffix bool) float64 {
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	if kSuffix {
		n *= 1000
	}
	return n
}
