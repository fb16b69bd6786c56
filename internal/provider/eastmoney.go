package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FundWatch/internal/model"

	"github.com/shopspring/decimal"
)

// EastmoneyProvider fetches intraday fund estimates from the fundgz JSONP
// feed and historical NAVs from the f10 API.
type EastmoneyProvider struct {
	QuoteBaseURL   string
	HistoryBaseURL string
	Client         *http.Client
	Loc            *time.Location
}

// NewEastmoneyProvider creates a new provider with optional proxy support.
func NewEastmoneyProvider(quoteBaseURL, historyBaseURL, proxyURL string, timeout time.Duration, loc *time.Location) *EastmoneyProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &EastmoneyProvider{
		QuoteBaseURL:   quoteBaseURL,
		HistoryBaseURL: historyBaseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Loc: loc,
	}
}

func (p *EastmoneyProvider) Name() string { return "eastmoney" }

// gzPayload is the JSON body inside the jsonpgz(...) wrapper.
type gzPayload struct {
	Fundcode string `json:"fundcode"`
	Name     string `json:"name"`
	Jzrq     string `json:"jzrq"`   // official NAV date
	Dwjz     string `json:"dwjz"`   // official NAV
	Gsz      string `json:"gsz"`    // estimated NAV
	Gszzl    string `json:"gszzl"`  // estimated change percent
	Gztime   string `json:"gztime"` // estimate timestamp
}

// FetchQuote retrieves the current snapshot for one fund code.
func (p *EastmoneyProvider) FetchQuote(ctx context.Context, code string) (*model.QuoteSnapshot, error) {
	endpoint := fmt.Sprintf("%s/js/%s.js?rt=%d", p.QuoteBaseURL, code, time.Now().UnixMilli())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", code, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quote %s: status %d", code, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read quote %s: %w", code, err)
	}

	payload, err := parseJSONP(body)
	if err != nil {
		return nil, fmt.Errorf("parse quote %s: %w", code, err)
	}
	return p.toSnapshot(payload)
}

// parseJSONP strips the jsonpgz(...) wrapper and decodes the JSON inside.
func parseJSONP(body []byte) (*gzPayload, error) {
	s := string(body)
	start := strings.Index(s, "(")
	end := strings.LastIndex(s, ")")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("not a jsonp response: %q", truncate(s, 60))
	}
	var payload gzPayload
	if err := json.Unmarshal([]byte(s[start+1:end]), &payload); err != nil {
		return nil, err
	}
	if payload.Fundcode == "" {
		return nil, fmt.Errorf("empty fund code in response")
	}
	return &payload, nil
}

func (p *EastmoneyProvider) toSnapshot(payload *gzPayload) (*model.QuoteSnapshot, error) {
	officialNav, err := decimal.NewFromString(payload.Dwjz)
	if err != nil {
		return nil, fmt.Errorf("official nav %q: %w", payload.Dwjz, err)
	}
	estimatedNav, err := decimal.NewFromString(payload.Gsz)
	if err != nil {
		return nil, fmt.Errorf("estimated nav %q: %w", payload.Gsz, err)
	}
	// Change percent is occasionally non-numeric for suspended funds;
	// treat that as zero change rather than failing the whole quote.
	changePct, err := decimal.NewFromString(payload.Gszzl)
	if err != nil {
		changePct = decimal.Zero
	}
	navDate, err := time.ParseInLocation("2006-01-02", payload.Jzrq, p.Loc)
	if err != nil {
		return nil, fmt.Errorf("nav date %q: %w", payload.Jzrq, err)
	}
	quoteTime, err := time.ParseInLocation("2006-01-02 15:04", payload.Gztime, p.Loc)
	if err != nil {
		return nil, fmt.Errorf("quote time %q: %w", payload.Gztime, err)
	}

	return &model.QuoteSnapshot{
		Code:                   payload.Fundcode,
		Name:                   payload.Name,
		OfficialNav:            officialNav,
		NavDate:                navDate,
		EstimatedNav:           estimatedNav,
		EstimatedChangePercent: changePct,
		QuoteTime:              quoteTime,
		// The gz feed does not expose per-fund estimation coverage;
		// assume full coverage until a richer source is wired in.
		EstimateCoverage: 1.0,
		FetchedAt:        time.Now(),
	}, nil
}

// lsjzResponse is the shape of the f10 historical NAV API.
type lsjzResponse struct {
	Data struct {
		LSJZList []struct {
			FSRQ string `json:"FSRQ"` // settlement date
			DWJZ string `json:"DWJZ"` // official NAV
		} `json:"LSJZList"`
	} `json:"Data"`
}

// ResolvePrice looks up the official NAV published for a settlement date.
// Returns ok=false when the date has no published NAV yet.
func (p *EastmoneyProvider) ResolvePrice(ctx context.Context, code string, date time.Time) (decimal.Decimal, bool, error) {
	endpoint := fmt.Sprintf("%s/f10/lsjz?fundCode=%s&pageIndex=1&pageSize=20", p.HistoryBaseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, false, err
	}
	// The f10 API rejects requests without a referer.
	req.Header.Set("Referer", "https://fundf10.eastmoney.com/")
	resp, err := p.Client.Do(req)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("fetch nav history %s: %w", code, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, false, fmt.Errorf("fetch nav history %s: status %d", code, resp.StatusCode)
	}

	var result lsjzResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, false, fmt.Errorf("decode nav history %s: %w", code, err)
	}

	want := date.In(p.Loc).Format("2006-01-02")
	for _, row := range result.Data.LSJZList {
		if row.FSRQ != want {
			continue
		}
		price, err := decimal.NewFromString(row.DWJZ)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("nav %q for %s on %s: %w", row.DWJZ, code, want, err)
		}
		if price.IsPositive() {
			return price, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
