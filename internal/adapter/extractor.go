package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/amansir99/trustscan-ai-sub001/internal/types"
)

// ExtractorConfig configures the HTTP extractor.
type ExtractorConfig struct {
	// UserAgent sent with every fetch.
	UserAgent string

	// MaxBodyBytes bounds how much of a response body is read.
	MaxBodyBytes int64

	// RequestsPerSecond is the per-domain politeness limit.
	RequestsPerSecond float64

	// Burst is the per-domain limiter burst size.
	Burst int
}

// DefaultExtractorConfig returns sensible extractor defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		UserAgent:         "trustscan/1.0",
		MaxBodyBytes:      2 << 20, // 2 MiB
		RequestsPerSecond: 1,
		Burst:             3,
	}
}

// HTTPExtractor implements Extractor by fetching the target page and
// parsing it with the html tokenizer. A per-domain token bucket keeps
// repeated audits of the same site polite regardless of how many workflow
// runs execute concurrently.
type HTTPExtractor struct {
	client *http.Client
	cfg    ExtractorConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPExtractor creates an HTTPExtractor. A nil client uses a default
// with a conservative timeout; per-step deadlines still apply through ctx.
func NewHTTPExtractor(client *http.Client, cfg ExtractorConfig) *HTTPExtractor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultExtractorConfig().UserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultExtractorConfig().MaxBodyBytes
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultExtractorConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultExtractorConfig().Burst
	}

	return &HTTPExtractor{
		client:   client,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Extract fetches and parses the target URL. Failures map onto the
// scraping error sub-causes: blocked (403), not found (404), timeout, and
// generic network failures.
func (e *HTTPExtractor) Extract(ctx context.Context, rawURL string) (*Content, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		return nil, types.NewError(types.VALIDATION_ERROR, fmt.Sprintf("invalid target URL: %q", rawURL))
	}

	if err := e.domainLimiter(target.Hostname()).Wait(ctx); err != nil {
		return nil, types.WrapError(types.TIMEOUT_ERROR, "cancelled waiting for domain rate limit", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, types.WrapError(types.SCRAPING_ERROR, "building request failed", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.WrapRetryableError(types.TIMEOUT_ERROR, "fetch timed out", err)
		}
		return nil, types.WrapRetryableError(types.NETWORK_ERROR, "fetch failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, types.NewError(types.SCRAPING_BLOCKED,
			fmt.Sprintf("target refused access (status %d)", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, types.NewError(types.SCRAPING_NOT_FOUND,
			fmt.Sprintf("target not found (status %d)", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, types.NewRetryableError(types.SCRAPING_ERROR,
			fmt.Sprintf("target returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		return nil, types.WrapRetryableError(types.SCRAPING_ERROR, "reading response body failed", err)
	}

	content := parseHTML(string(body))
	content.URL = target.String()
	content.HTTPS = target.Scheme == "https"
	content.StatusCode = resp.StatusCode
	content.FetchedAt = time.Now()

	return content, nil
}

// domainLimiter returns the politeness limiter for a domain, creating it
// on first use.
func (e *HTTPExtractor) domainLimiter(domain string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	limiter, ok := e.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.RequestsPerSecond), e.cfg.Burst)
		e.limiters[domain] = limiter
	}
	return limiter
}

// parseHTML walks the document and collects the fields Content needs.
func parseHTML(doc string) *Content {
	content := &Content{}

	var textParts []string
	var inScript, inStyle, inTitle bool

	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}

		switch tokenType {
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script":
				content.ScriptCount++
				inScript = tokenType == html.StartTagToken
			case "style":
				inStyle = tokenType == html.StartTagToken
			case "title":
				inTitle = tokenType == html.StartTagToken
			case "a":
				content.LinkCount++
				if href := attrValue(token, "href"); href != "" {
					markPageHints(content, strings.ToLower(href))
				}
			case "meta":
				if strings.EqualFold(attrValue(token, "name"), "description") {
					content.Description = attrValue(token, "content")
				}
			case "h1", "h2", "h3":
				tokenizer.Next()
				heading := strings.TrimSpace(string(tokenizer.Text()))
				if heading != "" {
					content.Headings = append(content.Headings, heading)
					textParts = append(textParts, heading)
				}
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			case "title":
				inTitle = false
			}

		case html.TextToken:
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if inTitle {
				if content.Title == "" {
					content.Title = text
				}
				continue
			}
			if !inScript && !inStyle {
				textParts = append(textParts, text)
				markPageHints(content, strings.ToLower(text))
			}
		}
	}

	content.Text = strings.Join(textParts, " ")
	content.WordCount = len(strings.Fields(content.Text))

	return content
}

// markPageHints flips the page-hint flags when trust-relevant pages or
// contact details show up in link targets or visible text.
func markPageHints(c *Content, s string) {
	if strings.Contains(s, "security") || strings.Contains(s, "responsible-disclosure") {
		c.HasSecurityPage = true
	}
	if strings.Contains(s, "privacy") {
		c.HasPrivacyPolicy = true
	}
	if strings.Contains(s, "contact") || strings.Contains(s, "mailto:") || strings.Contains(s, "support@") {
		c.HasContactInfo = true
	}
	if strings.Contains(s, "team") || strings.Contains(s, "about-us") || strings.Contains(s, "about us") {
		c.HasTeamPage = true
	}
}

func attrValue(token html.Token, name string) string {
	for _, attr := range token.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
