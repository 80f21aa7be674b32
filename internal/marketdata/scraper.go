package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/portview/backend/internal/contracts"
	"github.com/portview/backend/pkg/httputil"
	"github.com/portview/backend/pkg/logger"
)

// Scraper pulls daily closes off the provider's public HTML quote-history
// pages. It is the fallback when the JSON API is down or the account's quota
// is exhausted; the data is the same settled closes, just harder to get at.
type Scraper struct {
	http    *httputil.Client
	baseURL string
	logger  *logger.Logger
}

// NewScraper creates an HTML fallback scraper against the provider site.
func NewScraper(baseURL string, http *httputil.Client, log *logger.Logger) *Scraper {
	return &Scraper{
		http:    http,
		baseURL: baseURL,
		logger:  log,
	}
}

// FetchCloses scrapes daily closes for [from, to], paging backwards through
// the symbol's history table until the window is covered.
func (s *Scraper) FetchCloses(ctx context.Context, symbol string, from, to time.Time) ([]contracts.PricePoint, error) {
	from, to = contracts.Day(from), contracts.Day(to)

	var all []contracts.PricePoint
	for page := 1; page <= 100; page++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pageURL := fmt.Sprintf("%s/quote/%s/history?page=%d", s.baseURL, url.PathEscape(symbol), page)
		resp, err := s.http.Get(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch history page %d: %w", page, err)
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read history page %d: %w", page, err)
		}

		points, oldest, err := parseHistoryHTML(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse history page %d: %w", page, err)
		}
		if len(points) == 0 {
			break
		}

		all = append(all, points...)

		// Pages run newest to oldest; stop once we are past the window.
		if oldest.Before(from) {
			break
		}
	}

	filtered := make([]contracts.PricePoint, 0, len(all))
	for _, p := range all {
		d := contracts.Day(p.Date)
		if !d.Before(from) && !d.After(to) {
			filtered = append(filtered, contracts.PricePoint{Date: d, Close: p.Close})
		}
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].Date.Before(filtered[j].Date) })

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(filtered),
	}).Debug("Scraped daily closes")

	return filtered, nil
}

// parseHistoryHTML extracts (date, close) rows from a history table of the
// form <table class="history"><tr><td>2024-03-01</td>...<td>510.25</td></tr>.
// The close is the last numeric cell of each row.
func parseHistoryHTML(html string) ([]contracts.PricePoint, time.Time, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, time.Time{}, err
	}

	var points []contracts.PricePoint
	var oldest time.Time

	doc.Find("table.history tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		dateStr := strings.TrimSpace(cells.First().Text())
		date, err := time.ParseInLocation(contracts.DateFormat, dateStr, time.UTC)
		if err != nil {
			return
		}

		closeStr := strings.TrimSpace(cells.Last().Text())
		closeStr = strings.ReplaceAll(closeStr, ",", "")
		close, err := decimal.NewFromString(closeStr)
		if err != nil {
			return
		}

		points = append(points, contracts.PricePoint{Date: date, Close: close})
		if oldest.IsZero() || date.Before(oldest) {
			oldest = date
		}
	})

	return points, oldest, nil
}
