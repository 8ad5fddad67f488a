package imageset

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	pexelsSearchURL      = "https://api.pexels.com/v1/search"
	pexelsTimeout        = 10 * time.Second
	defaultPexelsPage    = 10
	defaultSourceBackoff = time.Second
)

// DefaultPexelsQueries are the search terms used when none are configured.
var DefaultPexelsQueries = []string{
	"solarpunk city architecture",
	"vertical forest skyscraper",
	"futuristic singapore gardens",
	"green eco city sci fi",
	"biophilic architecture night",
}

// PexelsSource pages through the Pexels search API, one query term at a time.
type PexelsSource struct {
	APIKey      string        // required, sent as the Authorization header
	Queries     []string      // default: DefaultPexelsQueries
	PerPage     int           // default: 10
	Orientation string        // default: "landscape"
	MaxPages    int           // pages per query (default: 1)
	Backoff     time.Duration // pause after a failed page (default: 1s)
	BaseURL     string        // default: https://api.pexels.com/v1/search
	Timeout     time.Duration // per page (default: 10s)
	HTTPClient  *http.Client  // default: http.DefaultClient
	UserAgent   string
	Logger      *slog.Logger
	Metrics     *Metrics
}

// NewPexelsSource returns a source for queries, or ErrMissingCredential.
func NewPexelsSource(apiKey string, queries []string) (*PexelsSource, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	return &PexelsSource{APIKey: apiKey, Queries: queries}, nil
}

func (p *PexelsSource) defaults() {
	if len(p.Queries) == 0 {
		p.Queries = DefaultPexelsQueries
	}
	if p.PerPage <= 0 {
		p.PerPage = defaultPexelsPage
	}
	if p.Orientation == "" {
		p.Orientation = "landscape"
	}
	if p.MaxPages <= 0 {
		p.MaxPages = 1
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultSourceBackoff
	}
	if p.BaseURL == "" {
		p.BaseURL = pexelsSearchURL
	}
	if p.Timeout <= 0 {
		p.Timeout = pexelsTimeout
	}
	if p.HTTPClient == nil {
		p.HTTPClient = http.DefaultClient
	}
	if p.UserAgent == "" {
		p.UserAgent = defaultUserAgent
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
}

func (p *PexelsSource) Name() string { return "pexels" }

type pexelsPage struct {
	Photos   []map[string]any `json:"photos"`
	NextPage string           `json:"next_page"`
}

// Records yields one RawRecord per photo. A failed page yields an error
// wrapping ErrSourceStatus, waits Backoff and moves on to the next query.
func (p *PexelsSource) Records(ctx context.Context) iter.Seq2[RawRecord, error] {
	p.defaults()
	return func(yield func(RawRecord, error) bool) {
		for _, query := range p.Queries {
			for page := 1; page <= p.MaxPages; page++ {
				if ctx.Err() != nil {
					return
				}
				res, err := p.fetchPage(ctx, query, page)
				if err != nil {
					p.Metrics.observeSourceError(p.Name())
					p.Logger.Warn("imageset: pexels page failed", "query", query, "page", page, "error", err.Error())
					if !yield(nil, err) {
						return
					}
					if sleepCtx(ctx, p.Backoff) != nil {
						return
					}
					break
				}
				if len(res.Photos) == 0 {
					p.Logger.Debug("imageset: pexels query exhausted", "query", query, "page", page)
					break
				}
				p.Logger.Debug("imageset: pexels page", "query", query, "page", page, "photos", len(res.Photos))
				for _, photo := range res.Photos {
					if !yield(rawFromPexels(photo), nil) {
						return
					}
				}
				if res.NextPage == "" {
					break
				}
			}
		}
	}
}

func (p *PexelsSource) fetchPage(ctx context.Context, query string, page int) (*pexelsPage, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(p.PerPage))
	q.Set("orientation", p.Orientation)
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceStatus, err)
	}
	req.Header.Set("Authorization", p.APIKey)
	req.Header.Set("User-Agent", p.UserAgent)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %q page %d: %v", ErrSourceStatus, query, page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %q page %d: status %d", ErrSourceStatus, query, page, resp.StatusCode)
	}

	var res pexelsPage
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: %q page %d: decode: %v", ErrSourceStatus, query, page, err)
	}
	return &res, nil
}

// rawFromPexels maps a photo object onto RawRecord keys. Absent fields stay
// absent so the validator can name them.
func rawFromPexels(photo map[string]any) RawRecord {
	raw := RawRecord{}
	copyKey := func(dst, src string) {
		if v, ok := photo[src]; ok {
			raw[dst] = v
		}
	}
	copyKey(FieldID, "id")
	copyKey(FieldWidth, "width")
	copyKey(FieldHeight, "height")
	copyKey(FieldAuthor, "photographer")
	if src, ok := photo["src"].(map[string]any); ok {
		if v, ok := src["original"]; ok {
			raw[FieldURL] = v
		}
	}
	return raw
}
