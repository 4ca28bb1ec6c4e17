package cts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/theoremus-urban-solutions/cts-departures/internal/logging"
)

// DefaultBaseURL is the production CTS SIRI-lite endpoint.
const DefaultBaseURL = "https://api.cts-strasbourg.eu/v1/siri/2.0"

// DefaultTimeout bounds every request.
const DefaultTimeout = 10 * time.Second

const (
	endpointGeneralMessage      = "/general-message"
	endpointLinesDiscovery      = "/lines-discovery"
	endpointStopPointsDiscovery = "/stoppoints-discovery"
	endpointStopMonitoring      = "/stop-monitoring"
)

// maxResponseBytes caps response reads; the full stop-point discovery payload
// is a few MB.
const maxResponseBytes = 25 * 1024 * 1024

// Client calls the CTS API with a fixed token. The zero value is not usable;
// use New.
type Client struct {
	token      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient substitutes the underlying HTTP client. Its own timeout wins
// over WithTimeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit paces outbound requests to rps with the given burst. The CTS
// open-data plan enforces a daily quota, so the daemon smooths its calls.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// New creates a Client for the given API token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newHTTPClient(c.timeout)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// DiscoverStopPoints fetches every stop point of the network, sorted
// ascending by display name.
func (c *Client) DiscoverStopPoints(ctx context.Context) ([]StopPoint, error) {
	c.logger.Debug("discovering stop points")
	var envelope stopPointsEnvelope
	if err := c.get(ctx, endpointStopPointsDiscovery, nil, &envelope); err != nil {
		return nil, err
	}

	refs := envelope.StopPointsDelivery.AnnotatedStopPointRef
	stopPoints := make([]StopPoint, 0, len(refs))
	for _, ref := range refs {
		stopPoints = append(stopPoints, ref.toStopPoint())
	}
	sort.Slice(stopPoints, func(i, j int) bool {
		return stopPoints[i].Name < stopPoints[j].Name
	})
	return stopPoints, nil
}

// MonitorStop fetches the upcoming departures for a stop. stopCode is the
// monitoring reference (logical stop code); lineRef optionally restricts the
// result to one line and is omitted when empty. A response with zero visits
// is a valid outcome: it returns an empty slice, a nil error and a warning
// log, since a stop simply may have no scheduled departure.
func (c *Client) MonitorStop(ctx context.Context, stopCode, lineRef string) ([]StopVisit, error) {
	query := url.Values{}
	query.Set("monitoringRef", stopCode)
	if lineRef != "" {
		query.Set("lineRef", lineRef)
	}

	c.logger.Debug("monitoring stop", slog.String("monitoring_ref", stopCode), slog.String("line_ref", lineRef))
	var envelope stopMonitoringEnvelope
	if err := c.get(ctx, endpointStopMonitoring, query, &envelope); err != nil {
		return nil, err
	}

	deliveries := envelope.ServiceDelivery.StopMonitoringDelivery
	if len(deliveries) == 0 {
		return nil, fmt.Errorf("stop monitoring response for %q has no StopMonitoringDelivery", stopCode)
	}

	visits, err := deliveries[0].toStopVisits()
	if err != nil {
		return nil, fmt.Errorf("stop monitoring response for %q: %w", stopCode, err)
	}
	if len(visits) == 0 {
		c.logger.Warn("stop monitoring returned no visits",
			slog.String("monitoring_ref", stopCode),
			slog.String("line_ref", lineRef))
	}
	return visits, nil
}

// GeneralMessages fetches the current advisory service-status messages.
func (c *Client) GeneralMessages(ctx context.Context) ([]InfoMessage, error) {
	c.logger.Debug("getting general messages")
	var envelope generalMessageEnvelope
	if err := c.get(ctx, endpointGeneralMessage, nil, &envelope); err != nil {
		return nil, err
	}

	wires := envelope.ServiceDelivery.GeneralMessageDelivery.InfoMessage
	messages := make([]InfoMessage, 0, len(wires))
	for _, w := range wires {
		message, err := w.toInfoMessage()
		if err != nil {
			return nil, fmt.Errorf("general message response: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// DiscoverLines fetches every line of the network. No current flow consumes
// it; it exists for parity with the upstream surface.
func (c *Client) DiscoverLines(ctx context.Context) ([]Line, error) {
	c.logger.Debug("discovering lines")
	var envelope linesEnvelope
	if err := c.get(ctx, endpointLinesDiscovery, nil, &envelope); err != nil {
		return nil, err
	}

	refs := envelope.LinesDelivery.AnnotatedLineRef
	lines := make([]Line, 0, len(refs))
	for _, ref := range refs {
		lines = append(lines, Line{Ref: ref.LineRef, Name: ref.LineName})
	}
	return lines, nil
}

// get performs one authenticated GET and decodes the JSON body into out,
// classifying failures per the package error taxonomy.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for request slot: %w", err)
		}
	}

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.SetBasicAuth(c.token, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and transport failures both classify as connection errors.
		return fmt.Errorf("GET %s: %w: %v", endpoint, ErrCannotConnect, err)
	}
	defer logging.SafeClose(resp.Body, c.logger, "response body")

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("GET %s: %w", endpoint, ErrInvalidToken)
	case resp.StatusCode == http.StatusInternalServerError:
		c.logger.Error("CTS API technical error",
			slog.String("endpoint", endpoint),
			slog.String("status", resp.Status))
		return fmt.Errorf("GET %s: %w: %s", endpoint, ErrCannotConnect, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("GET %s: unexpected status %s", endpoint, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("GET %s: %w: reading body: %v", endpoint, ErrCannotConnect, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: decode response: %w", endpoint, err)
	}
	return nil
}
