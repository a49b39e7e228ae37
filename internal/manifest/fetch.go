// Package manifest fetches channel listings and release manifests from the release API.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conn-castle/updated/internal/messages"
	"github.com/conn-castle/updated/internal/release"
)

// DefaultChannelsRoot is the API path under which channels are published.
const DefaultChannelsRoot = "openpilot/channels"

const defaultTimeout = 30 * time.Second

// ErrRemoteUnavailable covers every failure to obtain release metadata: transport
// errors, non-200 responses, undecodable bodies, and missing fields all collapse
// into this one kind.
var ErrRemoteUnavailable = errors.New("remote release metadata unavailable")

// Fetcher reads the release API. It performs no retries; callers re-poll.
type Fetcher struct {
	host         *url.URL
	channelsRoot string
	client       *http.Client
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithChannelsRoot overrides the API path of the channel listing.
func WithChannelsRoot(root string) Option {
	return func(f *Fetcher) {
		if trimmed := strings.Trim(strings.TrimSpace(root), "/"); trimmed != "" {
			f.channelsRoot = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client = &http.Client{Timeout: timeout}
		}
	}
}

// NewFetcher returns a Fetcher for the API at host (for example https://api.example.com).
func NewFetcher(host string, opts ...Option) (*Fetcher, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf(messages.ManifestHostRequired)
	}
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(host), "/"))
	if err != nil {
		return nil, fmt.Errorf(messages.ManifestInvalidHostFmt, host, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf(messages.ManifestInvalidHostFmt, host, errors.New("scheme must be http or https"))
	}
	f := &Fetcher{
		host:         parsed,
		channelsRoot: DefaultChannelsRoot,
		client:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

type channelResponse struct {
	BuildMetadata *release.Identity `json:"build_metadata"`
	Manifest      *release.Manifest `json:"manifest"`
}

// FetchChannels lists the channel names published by the API.
func (f *Fetcher) FetchChannels(ctx context.Context) ([]string, error) {
	endpoint := f.endpoint()
	var channels []string
	if err := f.getJSON(ctx, endpoint, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// FetchChannel returns the build identity and manifest currently published on channel.
func (f *Fetcher) FetchChannel(ctx context.Context, channel string) (release.Identity, release.Manifest, error) {
	if strings.TrimSpace(channel) == "" {
		return release.Identity{}, nil, fmt.Errorf("%w: %s", ErrRemoteUnavailable, messages.ManifestChannelRequired)
	}
	endpoint := f.endpoint(channel)
	var payload channelResponse
	if err := f.getJSON(ctx, endpoint, &payload); err != nil {
		return release.Identity{}, nil, err
	}
	if payload.BuildMetadata == nil {
		return release.Identity{}, nil, unavailable(fmt.Errorf(messages.ManifestMissingFieldFmt, endpoint, "build_metadata"))
	}
	if payload.Manifest == nil {
		return release.Identity{}, nil, unavailable(fmt.Errorf(messages.ManifestMissingFieldFmt, endpoint, "manifest"))
	}
	if strings.TrimSpace(payload.BuildMetadata.Channel) == "" {
		return release.Identity{}, nil, unavailable(fmt.Errorf(messages.ManifestMissingFieldFmt, endpoint, "build_metadata.channel"))
	}
	return *payload.BuildMetadata, *payload.Manifest, nil
}

func (f *Fetcher) endpoint(segments ...string) string {
	elems := []string{f.channelsRoot}
	for _, s := range segments {
		elems = append(elems, url.PathEscape(s))
	}
	return f.host.JoinPath(elems...).String()
}

func (f *Fetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return unavailable(fmt.Errorf(messages.ManifestCreateRequestErrFmt, endpoint, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "updated")

	resp, err := f.client.Do(req)
	if err != nil {
		return unavailable(fmt.Errorf(messages.ManifestFetchErrFmt, endpoint, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return unavailable(fmt.Errorf(messages.ManifestFetchStatusFmt, endpoint, resp.Status))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailable(fmt.Errorf(messages.ManifestDecodeErrFmt, endpoint, err))
	}
	return nil
}

// unavailable tags err as ErrRemoteUnavailable while keeping the cause in the chain.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
}
