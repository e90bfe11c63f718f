package router

import "strings"

// recentQuarters lists the quarter labels covered by the press-release
// corpus. A question naming one of these alongside performance language is
// always answerable from press releases.
var recentQuarters = []string{
	"q1 2024", "q2 2024", "q3 2024", "q4 2024",
	"q1 2025", "q2 2025",
}

var performanceTokens = []string{
	"earnings", "results", "performance", "liquidity", "revenue",
}

// hasRecentQuarterOverride reports whether question mentions both a recent
// quarter and a financial-performance term.
func hasRecentQuarterOverride(question string) bool {
	q := strings.ToLower(question)

	quarter := false
	for _, label := range recentQuarters {
		if strings.Contains(q, label) {
			quarter = true
			break
		}
	}
	if !quarter {
		return false
	}

	for _, token := range performanceTokens {
		if strings.Contains(q, token) {
			return true
		}
	}
	return false
}

var (
	pressKeywords = []string{
		"dividend", "earnings", "quarter", "announcement",
		"press", "news", "declared",
	}
	secKeywords = []string{
		"filing", "sec", "annual", "report",
		"10-k", "10-q", "compliance", "risk",
	}
	financialKeywords = []string{
		"revenue", "profit", "assets", "properties", "property",
		"financial", "income", "square", "metro", "address",
	}
)

func countMatches(q string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			n++
		}
	}
	return n
}

// fallbackRoute scores the question against per-source keyword lists.
// Ties resolve press releases first, then SEC reports, so a question with no
// matches at all lands on press releases.
func fallbackRoute(question string) Route {
	q := strings.ToLower(question)

	press := countMatches(q, pressKeywords)
	sec := countMatches(q, secKeywords)
	financial := countMatches(q, financialKeywords)

	switch {
	case press >= sec && press >= financial:
		return RoutePressReleases
	case sec >= financial:
		return RouteSECReports
	default:
		return RouteStructuredData
	}
}
