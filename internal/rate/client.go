package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mtlprog/savebox/internal/domain"
)

const providerBCB = "bcb_sgs"

// ErrInvalidRate indicates the series API answered with no usable rate.
var ErrInvalidRate = errors.New("invalid benchmark rate payload")

// BCBClient fetches the latest observation of a Central Bank time series
// (SGS) holding a daily benchmark rate percentage.
type BCBClient struct {
	baseURL    string
	seriesCode string
	httpClient *http.Client
}

// NewBCBClient creates a series API client. The timeout bounds every call.
func NewBCBClient(baseURL, seriesCode string, timeout time.Duration) *BCBClient {
	return &BCBClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		seriesCode: seriesCode,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SeriesCode returns the configured series identifier.
func (c *BCBClient) SeriesCode() string {
	return c.seriesCode
}

type observation struct {
	Data  string          `json:"data"`
	Valor json.RawMessage `json:"valor"`
}

// FetchLatest fetches the most recent daily rate and annualizes it over
// 252 business days. Non-2xx answers and empty or non-positive payloads
// are errors.
func (c *BCBClient) FetchLatest(ctx context.Context) (domain.RateSnapshot, error) {
	endpoint := fmt.Sprintf("%s/dados/serie/bcdata.sgs.%s/dados/ultimos/1?formato=json",
		c.baseURL, url.PathEscape(c.seriesCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("creating BCB request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("BCB request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("reading BCB response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.RateSnapshot{}, fmt.Errorf("BCB HTTP %d: %s", resp.StatusCode, string(body))
	}

	// Parse: [{"data":"14/10/2026","valor":"0.055131"}]
	var raw []observation
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("parsing BCB response: %w", err)
	}
	if len(raw) == 0 {
		return domain.RateSnapshot{}, fmt.Errorf("%w: empty series", ErrInvalidRate)
	}

	latest := raw[len(raw)-1]
	daily := domain.Round6(domain.SafeParse(strings.Trim(string(latest.Valor), `"`)).InexactFloat64())
	annual := domain.AnnualFromDailyPercent(daily)
	if daily <= 0 || annual <= 0 {
		return domain.RateSnapshot{}, fmt.Errorf("%w: valor %s", ErrInvalidRate, string(latest.Valor))
	}

	return domain.RateSnapshot{
		Provider:          providerBCB,
		SeriesCode:        c.seriesCode,
		ReferenceDate:     strings.TrimSpace(latest.Data),
		DailyRatePercent:  daily,
		AnnualRatePercent: annual,
	}, nil
}
