package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"io"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

var errStopped = errors.New("loki pusher is stopped")

const (
	levelLabel     = "level"
	errorTypeLabel = "error_type"
)

type Logger interface {
	Error(msg string, args ...any)
}

type Config struct {
	// Url of the push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	Url string `validate:"required,url"`

	// BatchMaxSize is the number of entries that triggers a push
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the longest an entry waits in the batch
	BatchMaxWait time.Duration `validate:"gte=1"`

	// BufferSize of the queue between Push and the sending goroutine
	BufferSize int `validate:"gte=0"`

	// Labels added to every stream
	Labels map[string]string

	// TenantKey and TenantValue set a tenant header for multi-tenant servers. Optional.
	TenantKey   string
	TenantValue string

	// Username and Password enable basic auth. Optional.
	Username string
	Password string `validate:"required_with=Username"`
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 1000
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 256
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

// Entry is a single log line. Level and ErrorType become stream labels so
// that errors of one kind can be selected without parsing the line.
type Entry struct {
	Time      time.Time         `json:"-"`
	Level     string            `json:"-"`
	ErrorType string            `json:"-"`
	Message   string            `json:"msg"`
	Caller    string            `json:"caller,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type batch struct {
	streams map[string]*stream
	size    int
}

func newBatch() *batch {
	return &batch{streams: make(map[string]*stream)}
}

func (b *batch) add(labels map[string]string, entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := labelsKey(labels)
	s, ok := b.streams[key]
	if !ok {
		s = &stream{Stream: labels}
		b.streams[key] = s
	}
	s.Values = append(s.Values, [2]string{strconv.FormatInt(entry.Time.UnixNano(), 10), string(line)})
	b.size++
	return nil
}

func (b *batch) request() pushRequest {
	request := pushRequest{Streams: make([]stream, 0, len(b.streams))}
	for _, key := range slices.Sorted(maps.Keys(b.streams)) {
		request.Streams = append(request.Streams, *b.streams[key])
	}
	return request
}

func labelsKey(labels map[string]string) string {
	var sb strings.Builder
	for _, name := range slices.Sorted(maps.Keys(labels)) {
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(labels[name])
		sb.WriteByte(',')
	}
	return sb.String()
}

// Pusher collects entries in the background and ships them to Loki in gzip
// compressed batches.
type Pusher struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	client  *http.Client
	entries chan Entry
	quit    chan struct{}
	done    sync.WaitGroup
	logger  Logger
}

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {

	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
		client:  &http.Client{Timeout: 10 * time.Second},
		entries: make(chan Entry, cfg.BufferSize),
		quit:    make(chan struct{}),
		logger:  logger,
	}

	p.done.Add(1)
	go p.run()
	return p, nil
}

// Push queues the entry for the next batch. It fails once the pusher is stopped.
func (p *Pusher) Push(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case <-p.quit:
		return errStopped
	default:
	}

	select {
	case p.entries <- e:
		return nil
	case <-p.quit:
		return errStopped
	case <-p.ctx.Done():
		return errStopped
	}
}

// Stop sends what is already queued and waits for the sending goroutine.
func (p *Pusher) Stop() {
	close(p.quit)
	p.done.Wait()
	p.cancel()
}

func (p *Pusher) run() {
	defer p.done.Done()

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	current := newBatch()
	flush := func() {
		if current.size == 0 {
			return
		}
		if err := p.send(current.request()); err != nil {
			p.logger.Error("failed to send logs", "error", err, "entries", current.size)
		}
		current = newBatch()
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.quit:
			p.drain(current)
			flush()
			return
		case entry := <-p.entries:
			if err := current.add(p.labels(entry), entry); err != nil {
				p.logger.Error("failed to encode log entry", "error", err)
			}
			if current.size >= p.config.BatchMaxSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *Pusher) drain(current *batch) {
	for {
		select {
		case entry := <-p.entries:
			_ = current.add(p.labels(entry), entry)
		default:
			return
		}
	}
}

func (p *Pusher) labels(entry Entry) map[string]string {
	labels := maps.Clone(p.config.Labels)
	labels[levelLabel] = entry.Level
	if entry.ErrorType != "" {
		labels[errorTypeLabel] = entry.ErrorType
	}
	return labels
}

func (p *Pusher) send(request pushRequest) error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	if err := json.NewEncoder(gz).Encode(request); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.config.Url, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}
	if p.config.Username != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected response from Loki: %s, body: %s", resp.Status, string(body))
	}
	return nil
}
