package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hmoussa/egx-quant/pkg/config"
	"github.com/hmoussa/egx-quant/pkg/httputil"
	"github.com/hmoussa/egx-quant/pkg/logger"
)

// fallbackTickers covers the liquid core of the universe when the
// published list cannot be fetched.
var fallbackTickers = []string{
	"INFI.CA", "TMGH.CA", "SMFR.CA", "MBSC.CA", "MOSC.CA",
	"INEG.CA", "MOED.CA", "EGAS.CA", "AJWA.CA", "OLFI.CA",
}

var listPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

// TickerSource fetches the published instrument list.
type TickerSource struct {
	http    *httputil.Client
	listURL string
	logger  *logger.Logger
}

// NewTickerSource creates a ticker list fetcher.
func NewTickerSource(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *TickerSource {
	return &TickerSource{
		http:    httpClient,
		listURL: cfg.Market.TickerListURL,
		logger:  log.WithField("module", "marketdata"),
	}
}

// Fetch downloads and parses the instrument list page. The page is
// sometimes served as a bare bracketed list and sometimes wrapped in
// HTML, so parsing tries the raw body first and falls back to the
// document text. When everything fails, the hardcoded fallback list
// keeps the pipeline alive.
func (s *TickerSource) Fetch(ctx context.Context) ([]string, error) {
	body, err := s.http.Get(ctx, s.listURL, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Ticker list fetch failed, using fallback list")
		return append([]string(nil), fallbackTickers...), nil
	}

	tickers := parseTickerList(string(body))
	if len(tickers) == 0 {
		if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(string(body))); derr == nil {
			tickers = parseTickerList(doc.Text())
		}
	}

	if len(tickers) == 0 {
		s.logger.Warn("Ticker list parsing failed, using fallback list")
		return append([]string(nil), fallbackTickers...), nil
	}

	s.logger.WithField("count", len(tickers)).Info("Loaded ticker list")
	return tickers, nil
}

// parseTickerList extracts a bracketed list of symbols from text.
// Accepts JSON arrays and single-quoted literal lists.
func parseTickerList(text string) []string {
	match := listPattern.FindString(text)
	if match == "" {
		return nil
	}

	normalized := strings.ReplaceAll(match, "'", `"`)

	var raw []string
	if err := json.Unmarshal([]byte(normalized), &raw); err != nil {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		seen[t] = struct{}{}
	}

	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	return tickers
}

// Validate reports obviously malformed symbols; kept separate so the
// pipeline can log and drop them without failing the fetch.
func Validate(ticker string) error {
	if ticker == "" || strings.ContainsAny(ticker, " \t\n") {
		return fmt.Errorf("malformed ticker %q", ticker)
	}
	return nil
}
