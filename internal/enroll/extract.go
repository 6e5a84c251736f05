package enroll

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	resultPollAttempts = 20
	resultPollInterval = time.Second
)

// successKeywords mark a page as a landed confirmation even before a
// code is found.
var successKeywords = []string{
	"confirmation",
	"confirmación",
	"member",
	"miembro",
	"congratulations",
	"felicidades",
	"bienvenido",
	"welcome",
	"thank you",
	"gracias",
}

var successURLMarkers = []string{"confirmation", "success", "enrolled", "thank"}

// codePatterns are tried in order of specificity. The bare 8-digit
// pattern is last and is additionally screened against year-like
// prefixes.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`MB\d{8,12}`),
	regexp.MustCompile(`\b\d{10,12}\b`),
	regexp.MustCompile(`\b\d{9}\b`),
	regexp.MustCompile(`[A-Z]{2}\d{8,10}`),
	regexp.MustCompile(`\b\d{8}\b`),
}

var yearPrefix = regexp.MustCompile(`^(19|20)\d{2}`)

// structuralCandidatesScript collects text from elements that
// confirmation pages typically use to display the member number.
const structuralCandidatesScript = `(() => {
	const selectors = [
		'.member-number', '.membership-number', '.confirmation-number',
		'[class*="member"]', '[class*="confirmation"]', '[id*="member"]',
		'[id*="confirmation"]', 'strong', 'b', 'h1', 'h2', 'h3',
	];
	const seen = new Set();
	const texts = [];
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			const text = (el.textContent || '').trim();
			if (text && text.length < 200 && !seen.has(text)) {
				seen.add(text);
				texts.push(text);
			}
		}
	}
	return texts;
})()`

// Extractor polls the post-submit page for a confirmation code.
type Extractor struct {
	logger *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract polls the current page until a confirmation code appears or
// the attempt budget runs out. Returns "" when nothing plausible was
// found.
func (e *Extractor) Extract(ctx context.Context) string {
	for attempt := 1; attempt <= resultPollAttempts; attempt++ {
		if err := chromedp.Run(ctx, chromedp.Sleep(resultPollInterval)); err != nil {
			e.logger.Warn("result polling aborted", zap.Error(err))
			return ""
		}

		var location, html string
		err := chromedp.Run(ctx,
			chromedp.Location(&location),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
		if err != nil {
			e.logger.Debug("result page read failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		landed := pageIndicatesSuccess(location, html)

		if code := e.scanStructural(ctx); code != "" {
			e.logger.Info("confirmation code extracted",
				zap.String("source", "structural"),
				zap.Int("attempt", attempt),
			)
			return code
		}
		if code := ScanContent(html); code != "" {
			e.logger.Info("confirmation code extracted",
				zap.String("source", "content"),
				zap.Int("attempt", attempt),
			)
			return code
		}

		if landed {
			e.logger.Debug("confirmation page reached, code not yet visible",
				zap.Int("attempt", attempt),
			)
		}
	}
	return ""
}

// scanStructural harvests dedicated confirmation elements and scans
// each text in isolation, which avoids false hits from unrelated page
// chrome.
func (e *Extractor) scanStructural(ctx context.Context) string {
	var texts []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(structuralCandidatesScript, &texts)); err != nil {
		return ""
	}
	for _, text := range texts {
		if code := ScanContent(text); code != "" {
			return code
		}
	}
	return ""
}

// ScanContent applies the code patterns to free text and returns the
// first plausible match. Year-like bare numbers are rejected.
func ScanContent(content string) string {
	for _, pattern := range codePatterns {
		for _, match := range pattern.FindAllString(content, -1) {
			if plausibleCode(match) {
				return match
			}
		}
	}
	return ""
}

func plausibleCode(candidate string) bool {
	if len(candidate) < 6 {
		return false
	}
	hasDigit := false
	for _, r := range candidate {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	// A bare number opening with a plausible year is almost always a
	// date, not a member number.
	if isDigits(candidate) && yearPrefix.MatchString(candidate) && len(candidate) <= 8 {
		return false
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func pageIndicatesSuccess(location, html string) bool {
	lowerURL := strings.ToLower(location)
	for _, marker := range successURLMarkers {
		if strings.Contains(lowerURL, marker) {
			return true
		}
	}
	lowerHTML := strings.ToLower(html)
	for _, keyword := range successKeywords {
		if strings.Contains(lowerHTML, keyword) {
			return true
		}
	}
	return false
}
