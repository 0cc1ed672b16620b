// backend/internal/collection/provider.go
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quizzems/internal/models"
	"quizzems/pkg/cache"
)

// Provider fetches a collection by id. A nil collection means not found.
type Provider interface {
	FetchByID(ctx context.Context, id string) (*models.RawCollection, error)
}

// DBProvider serves collections from the local database.
type DBProvider struct {
	repo *Repository
}

func NewDBProvider(repo *Repository) *DBProvider {
	return &DBProvider{repo: repo}
}

func (p *DBProvider) FetchByID(ctx context.Context, id string) (*models.RawCollection, error) {
	coll, err := p.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return coll.ToRaw(), nil
}

// HTTPProvider fetches collections from a remote collections API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type apiProfile struct {
	Username     string `json:"username"`
	UsernameSlug string `json:"username_slug"`
}

// apiCollection is the remote shape; author details may come in a joined
// profiles object.
type apiCollection struct {
	models.RawCollection
	Profiles *apiProfile `json:"profiles"`
}

func (p *HTTPProvider) FetchByID(ctx context.Context, id string) (*models.RawCollection, error) {
	endpoint := fmt.Sprintf("%s/collections/%s", p.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch collection %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch collection %s: unexpected status %d", id, resp.StatusCode)
	}

	var body apiCollection
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", id, err)
	}
	if body.ID == "" && len(body.Items) == 0 && body.Category == "" {
		return nil, nil
	}

	raw := body.RawCollection
	if raw.ID == "" {
		raw.ID = id
	}
	if body.Profiles != nil {
		if body.Profiles.Username != "" {
			raw.Author = body.Profiles.Username
		}
		if body.Profiles.UsernameSlug != "" {
			raw.AuthorSlug = body.Profiles.UsernameSlug
		}
	}
	return &raw, nil
}

// CollectionCache is the part of the Redis cache the cached provider uses.
type CollectionCache interface {
	GetCollection(ctx context.Context, id string) (*models.RawCollection, error)
	SetCollection(ctx context.Context, coll *models.RawCollection, ttl time.Duration) error
	DeleteCollection(ctx context.Context, id string) error
}

// CachedProvider reads through a cache in front of another provider. Cache
// failures only cost a trip to the backing provider.
type CachedProvider struct {
	next  Provider
	cache CollectionCache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, c CollectionCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) FetchByID(ctx context.Context, id string) (*models.RawCollection, error) {
	coll, err := p.cache.GetCollection(ctx, id)
	if err == nil {
		return coll, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Error reading collection %s from cache: %v", id, err)
	}

	coll, err = p.next.FetchByID(ctx, id)
	if err != nil || coll == nil {
		return coll, err
	}
	cached := *coll
	cached.ID = id
	if err := p.cache.SetCollection(ctx, &cached, p.ttl); err != nil {
		log.Printf("Error caching collection %s: %v", id, err)
	}
	return coll, nil
}

// Invalidate drops a collection from the cache after it changed.
func (p *CachedProvider) Invalidate(ctx context.Context, id string) {
	if err := p.cache.DeleteCollection(ctx, id); err != nil {
		log.Printf("Error invalidating collection %s: %v", id, err)
	}
}
