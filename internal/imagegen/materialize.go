package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"server/internal/infra"
	"server/internal/storage"
)

// ErrDownload indicates the provider handed back a URL that could not be
// fetched.
var ErrDownload = errors.New("imagegen: image download failed")

// ErrUnrecognizedOutput indicates a provider response shape the decoder does
// not understand.
var ErrUnrecognizedOutput = errors.New("imagegen: unrecognized provider output format")

// Materializer converts a raw provider output value into a durably stored,
// externally fetchable image URL.
type Materializer struct {
	store      *storage.FileStore
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// MaterializerOptions configures a Materializer.
type MaterializerOptions struct {
	Store      *storage.FileStore
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// NewMaterializer wires a materializer onto a file store.
func NewMaterializer(opts MaterializerOptions) (*Materializer, error) {
	if opts.Store == nil {
		return nil, errors.New("imagegen: store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Materializer{
		store:      opts.Store,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// decoded is the tagged result of interpreting a provider output value once,
// at this boundary, instead of scattering type switches across call sites.
type decoded struct {
	url  string
	data []byte
}

// Materialize resolves output to image bytes and persists them under a name
// carrying the brand slug and the variation label. It returns the stored
// image's public URL.
func (m *Materializer) Materialize(ctx context.Context, output any, brandName, label string) (string, error) {
	dec, err := decodeOutput(output)
	if err != nil {
		return "", err
	}
	data := dec.data
	if dec.url != "" {
		data, err = m.download(ctx, dec.url)
		if err != nil {
			return "", err
		}
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image payload", ErrUnrecognizedOutput)
	}
	return m.SaveBytes(ctx, data, brandName, label)
}

// SaveBytes persists already-resolved image bytes and returns the public URL.
// The filename keeps brand, label, and timestamp as diagnostic fields; the
// uuid suffix is what actually guarantees uniqueness.
func (m *Materializer) SaveBytes(ctx context.Context, data []byte, brandName, label string) (string, error) {
	filename := fmt.Sprintf("%s_%s_%d_%s.png",
		slugify(brandName), label, m.now().UnixMilli(), uuid.NewString()[:8])
	key, err := m.store.Write(ctx, filename, data)
	if err != nil {
		return "", err
	}
	m.logger.Debug().Str("file", key).Int("bytes", len(data)).Msg("imagegen: stored image")
	return storage.PublicURL(m.baseURL, key), nil
}

func (m *Materializer) download(ctx context.Context, imageURL string) ([]byte, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrDownload, imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrDownload, err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d from %s", ErrDownload, resp.StatusCode, parsed.Host)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrDownload, err)
	}
	return data, nil
}

// decodeOutput classifies a provider output value: a URL string, raw bytes, a
// byte stream, or a container holding a URL somewhere conventional. Containers
// are searched breadth-first across their own fields and one level into
// arrays.
func decodeOutput(v any) (decoded, error) {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "http") {
			return decoded{url: t}, nil
		}
	case []byte:
		if len(t) > 0 {
			return decoded{data: t}, nil
		}
	case io.Reader:
		data, err := io.ReadAll(t)
		if err != nil {
			return decoded{}, fmt.Errorf("%w: drain stream: %v", ErrUnrecognizedOutput, err)
		}
		return decoded{data: data}, nil
	case []any:
		if u := firstHTTPString(t); u != "" {
			return decoded{url: u}, nil
		}
	case map[string]any:
		// Sorted keys keep the search deterministic when several fields hold URLs.
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		queue := make([]any, 0, len(keys))
		for _, key := range keys {
			queue = append(queue, t[key])
		}
		if u := firstHTTPString(queue); u != "" {
			return decoded{url: u}, nil
		}
	}
	return decoded{}, fmt.Errorf("%w: %T", ErrUnrecognizedOutput, v)
}

func firstHTTPString(values []any) string {
	// Direct fields first, then one level into nested arrays.
	for _, v := range values {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "http") {
			return s
		}
	}
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			for _, inner := range arr {
				if s, ok := inner.(string); ok && strings.HasPrefix(s, "http") {
					return s
				}
			}
		}
	}
	return ""
}

var slugTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// slugify lowercases a brand name and strips everything but letters and
// digits, folding accented characters first so "Hermès" becomes "hermes".
func slugify(name string) string {
	folded, _, err := transform.String(slugTransformer, name)
	if err != nil {
		folded = name
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "brand"
	}
	return sb.String()
}
