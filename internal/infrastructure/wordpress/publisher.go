package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"ContentOrchestrator/internal/config"
	"ContentOrchestrator/internal/domain"
	"ContentOrchestrator/internal/ports"
)

const (
	apiPrefix    = "/wp-json/wp/v2/"
	postStatus   = "publish"
	maxImageSize = 20 << 20
)

// Publisher creates posts through the WordPress REST API using application-password basic auth.
type Publisher struct {
	baseURL   string
	username  string
	password  string
	seoPlugin string
	client    *http.Client
	logger    *slog.Logger

	mu    sync.Mutex
	terms map[string]int64
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher registers site credentials.
func NewPublisher(cfg config.PublisherConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		username:  cfg.Username,
		password:  cfg.Password,
		seoPlugin: strings.ToLower(cfg.SEOPlugin),
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
		terms:     map[string]int64{},
	}
}

type term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreatePost resolves taxonomies, uploads the featured image when possible, and returns the post link.
func (p *Publisher) CreatePost(ctx context.Context, post ports.Post) (string, error) {
	if p.baseURL == "" {
		return "", fmt.Errorf("wordpress publisher misconfigured: %w", domain.ErrPublishFailed)
	}

	categories, err := p.resolveAll(ctx, ports.TaxonomyCategory, post.Categories)
	if err != nil {
		return "", err
	}
	tags, err := p.resolveAll(ctx, ports.TaxonomyTag, post.Tags)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"title":      post.Title,
		"content":    post.Body,
		"excerpt":    post.Excerpt,
		"status":     postStatus,
		"categories": categories,
		"tags":       tags,
	}

	if post.FeaturedImage != "" {
		if mediaID, err := p.uploadImage(ctx, post.FeaturedImage, post.Title); err != nil {
			p.logger.Warn("featured image upload failed", "image", post.FeaturedImage, "error", err)
		} else {
			payload["featured_media"] = mediaID
		}
	}

	if meta := p.meta(post); len(meta) > 0 {
		payload["meta"] = meta
	}

	var created struct {
		ID   int64  `json:"id"`
		Link string `json:"link"`
	}
	if err := p.do(ctx, http.MethodPost, "posts", nil, payload, &created); err != nil {
		return "", fmt.Errorf("create post: %w: %w", domain.ErrPublishFailed, err)
	}

	p.logger.Info("post created", "id", created.ID, "link", created.Link)
	return created.Link, nil
}

// ResolveOrCreateTaxonomy returns the term id for name, creating the term when missing.
// Results are cached for the publisher's lifetime.
func (p *Publisher) ResolveOrCreateTaxonomy(ctx context.Context, kind ports.TaxonomyKind, name string) (int64, error) {
	name = strings.TrimSpace(name)
	key := string(kind) + "\x00" + strings.ToLower(name)

	p.mu.Lock()
	id, ok := p.terms[key]
	p.mu.Unlock()
	if ok {
		return id, nil
	}

	var found []term
	if err := p.do(ctx, http.MethodGet, string(kind), url.Values{"search": {name}}, nil, &found); err != nil {
		return 0, fmt.Errorf("search %s %q: %w", kind, name, err)
	}
	for _, t := range found {
		if strings.EqualFold(t.Name, name) {
			id = t.ID
			break
		}
	}

	if id == 0 {
		var created term
		if err := p.do(ctx, http.MethodPost, string(kind), nil, map[string]string{"name": name}, &created); err != nil {
			return 0, fmt.Errorf("create %s %q: %w", kind, name, err)
		}
		id = created.ID
	}

	p.mu.Lock()
	p.terms[key] = id
	p.mu.Unlock()
	return id, nil
}

// Ping fetches the REST API index to confirm the site answers.
func (p *Publisher) Ping(ctx context.Context) error {
	if p.baseURL == "" {
		return fmt.Errorf("wordpress publisher misconfigured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/wp-json/", nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(p.username, p.password)
	return p.send(req, nil)
}

func (p *Publisher) resolveAll(ctx context.Context, kind ports.TaxonomyKind, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		id, err := p.ResolveOrCreateTaxonomy(ctx, kind, name)
		if err != nil {
			return nil, fmt.Errorf("resolve taxonomy: %w: %w", domain.ErrPublishFailed, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// meta maps SEO fields onto the configured plugin's keys and merges custom meta.
func (p *Publisher) meta(post ports.Post) map[string]string {
	meta := map[string]string{}
	titleKey, descKey := "_yoast_wpseo_title", "_yoast_wpseo_metadesc"
	if p.seoPlugin == "rankmath" {
		titleKey, descKey = "rank_math_title", "rank_math_description"
	}
	if post.MetaTitle != "" {
		meta[titleKey] = post.MetaTitle
	}
	if post.MetaDescription != "" {
		meta[descKey] = post.MetaDescription
	}
	for k, v := range post.CustomMeta {
		meta[k] = v
	}
	return meta
}

func (p *Publisher) uploadImage(ctx context.Context, imageURL, title string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download image: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return 0, fmt.Errorf("read image: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+apiPrefix+"media", bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	upload.SetBasicAuth(p.username, p.password)
	upload.Header.Set("Content-Type", contentType)
	upload.Header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", imageFilename(imageURL, title)))

	var media struct {
		ID int64 `json:"id"`
	}
	if err := p.send(upload, &media); err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	return media.ID, nil
}

func (p *Publisher) do(ctx context.Context, method, resource string, query url.Values, payload, v any) error {
	endpoint := p.baseURL + apiPrefix + resource
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(p.username, p.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return p.send(req, v)
}

func (p *Publisher) send(req *http.Request, v any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wordpress error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func imageFilename(imageURL, title string) string {
	ext := ".png"
	if u, err := url.Parse(imageURL); err == nil {
		if e := path.Ext(u.Path); e != "" && len(e) <= 5 {
			ext = e
		}
	}

	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
		if b.Len() >= 50 {
			break
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "featured"
	}
	return name + ext
}
