package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/background"
	"studio/internal/providers/analysis"
	"studio/internal/providers/image"
	"studio/internal/queue"
	"studio/internal/storage"
)

// Runner admits provider jobs. The production implementation is the paced
// queue; tests substitute an inline runner.
type Runner interface {
	Enqueue(job queue.Job) error
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Generators map[image.Family]image.Generator
	Resizer    image.Resizer
	Analyzer   analysis.Analyzer
	Remover    background.Remover
	Files      *storage.FileStore
	Runner     Runner
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Orchestrator coordinates provider calls against live sessions. It reserves
// version slots up front under the session lock, runs providers off the lock,
// and reconciles results by stable version ID so concurrent navigation and
// deletion cannot misroute a late response.
type Orchestrator struct {
	generators map[image.Family]image.Generator
	resizer    image.Resizer
	analyzer   analysis.Analyzer
	remover    background.Remover
	files      *storage.FileStore
	runner     Runner
	httpClient *http.Client
	timeout    time.Duration
	logger     zerolog.Logger
}

// New builds an orchestrator from options.
func New(opts Options) *Orchestrator {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Orchestrator{
		generators: opts.Generators,
		resizer:    opts.Resizer,
		analyzer:   opts.Analyzer,
		remover:    opts.Remover,
		files:      opts.Files,
		runner:     opts.Runner,
		httpClient: client,
		timeout:    timeout,
		logger:     opts.Logger,
	}
}

func (o *Orchestrator) generatorFor(model image.ModelID) (image.Generator, error) {
	cap, ok := image.Lookup(string(model))
	if !ok {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	gen, ok := o.generators[cap.Family]
	if !ok {
		return nil, fmt.Errorf("no generator wired for family %q", cap.Family)
	}
	return gen, nil
}

// submit hands a job to the runner, falling back to a direct goroutine when
// the queue refuses it so a reserved slot always settles.
func (o *Orchestrator) submit(job queue.Job) {
	if o.runner == nil {
		go job(context.Background())
		return
	}
	if err := o.runner.Enqueue(job); err != nil {
		o.logger.Warn().Err(err).Msg("orchestrator: queue refused job, running directly")
		go job(context.Background())
	}
}

// persistAsset stores generated bytes under the session's asset prefix and
// returns the public URL. Assets that only carry a remote URL are passed
// through untouched.
func (o *Orchestrator) persistAsset(ctx context.Context, sessionID string, asset *image.Asset) (string, error) {
	if asset == nil {
		return "", fmt.Errorf("provider returned no asset")
	}
	if len(asset.Data) == 0 {
		if asset.URL == "" {
			return "", fmt.Errorf("provider returned empty asset")
		}
		return asset.URL, nil
	}
	if o.files == nil {
		return asset.URL, nil
	}
	ext := storage.ExtensionForMime(asset.Format)
	key := fmt.Sprintf("sessions/%s/%s.%s", sessionID, uuid.NewString(), ext)
	stored, err := o.files.Write(ctx, key, asset.Data)
	if err != nil {
		return "", err
	}
	return o.files.URL(stored), nil
}

// loadImage fetches the bytes behind an asset URL. Local storage URLs are
// read straight from disk; anything else goes over HTTP.
func (o *Orchestrator) loadImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return decodeDataURL(rawURL)
	}
	if o.files != nil {
		prefix := o.files.BaseURL() + "/"
		if o.files.BaseURL() != "" && strings.HasPrefix(rawURL, prefix) {
			key := strings.TrimPrefix(rawURL, prefix)
			data, err := o.files.Read(ctx, key)
			if err == nil {
				return data, mimeForKey(key), nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create image request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/png"
	}
	return data, mime, nil
}

func decodeDataURL(raw string) ([]byte, string, error) {
	mime, data, err := storage.DecodeDataURL(raw)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func mimeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".gif"):
		return "image/gif"
	default:
		return "image/png"
	}
}

// analysisContext flattens the stored analysis into a prompt suffix.
func analysisContext(product, mood, description string, colors []string) string {
	var parts []string
	if product != "" {
		parts = append(parts, "Product: "+product)
	}
	if mood != "" {
		parts = append(parts, "Mood: "+mood)
	}
	if len(colors) > 0 {
		parts = append(parts, "Palette: "+strings.Join(colors, ", "))
	}
	if description != "" {
		parts = append(parts, description)
	}
	return strings.Join(parts, ". ")
}
