package goHMS

import (
	"context"
	"maps"
	"net/http"
	"net/url"

	"github.com/MrEthical07/goHMS/cache"
)

// Collection reads and mutates one REST resource. Reads go through the shared
// cache; mutations go straight to the API and invalidate the cache only after
// they succeed.
type Collection[T any, In any] struct {
	client   *Client
	resource string
	path     string
}

func newCollection[T any, In any](c *Client, resource string) *Collection[T, In] {
	return &Collection[T, In]{
		client:   c,
		resource: resource,
		path:     "/" + resource,
	}
}

// Resource returns the resource name used in URLs and cache keys.
func (col *Collection[T, In]) Resource() string { return col.resource }

// List returns one page. Identical params share one cache entry and one
// in-flight request regardless of filter order.
func (col *Collection[T, In]) List(ctx context.Context, params ListParams) (*Page[T], error) {
	c := col.client
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	query := c.listQuery(params)
	key := cache.ListKey(col.resource, query)

	page, err := cache.Fetch(ctx, c.cache, key, c.config.Cache.ListStaleTime, func(ctx context.Context) (*Page[T], error) {
		var out Page[T]
		if err := c.getWithRetry(ctx, col.path, cache.Values(query), &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := *page
	out.Items = append([]T(nil), page.Items...)
	return &out, nil
}

// Get returns one record. An empty id returns ErrQueryDisabled without a request.
func (col *Collection[T, In]) Get(ctx context.Context, id string) (*T, error) {
	c := col.client
	if id == "" {
		return nil, ErrQueryDisabled
	}
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	v, err := cache.Fetch(ctx, c.cache, cache.DetailKey(col.resource, id), c.config.Cache.DetailStaleTime, func(ctx context.Context) (*T, error) {
		var out T
		if err := c.getWithRetry(ctx, col.itemPath(id), nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	out := *v
	return &out, nil
}

// Create validates in and posts it. Every list of the resource is invalidated
// on success.
func (col *Collection[T, In]) Create(ctx context.Context, in In) (*T, error) {
	if err := col.client.validateInput(&in); err != nil {
		return nil, err
	}

	var out T
	if err := col.mutate(ctx, http.MethodPost, col.path, in, &out); err != nil {
		return nil, err
	}
	col.client.cache.Invalidate(col.resource)
	return &out, nil
}

// Update validates in and patches record id. Every list and the detail entry
// for id are invalidated on success.
func (col *Collection[T, In]) Update(ctx context.Context, id string, in In) (*T, error) {
	if id == "" {
		return nil, &ValidationError{Fields: map[string]string{"id": "id is required"}}
	}
	if err := col.client.validateInput(&in); err != nil {
		return nil, err
	}

	var out T
	if err := col.mutate(ctx, http.MethodPatch, col.itemPath(id), in, &out); err != nil {
		return nil, err
	}
	col.client.cache.Invalidate(col.resource, id)
	return &out, nil
}

// Delete removes record id. Every list and the detail entry for id are
// invalidated on success.
func (col *Collection[T, In]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Fields: map[string]string{"id": "id is required"}}
	}

	if err := col.mutate(ctx, http.MethodDelete, col.itemPath(id), nil, nil); err != nil {
		return err
	}
	col.client.cache.Invalidate(col.resource, id)
	return nil
}

// mutate issues exactly one request; mutations are never retried.
func (col *Collection[T, In]) mutate(ctx context.Context, method, path string, body, out any) error {
	c := col.client
	if err := c.do(ctx, method, path, nil, body, out); err != nil {
		c.metricInc(MetricMutationFailure)
		c.logger.DebugContext(ctx, "goHMS: mutation failed",
			"resource", col.resource,
			"method", method,
			"err", err,
		)
		return err
	}
	c.metricInc(MetricMutationSuccess)
	return nil
}

func (col *Collection[T, In]) itemPath(id string) string {
	return col.path + "/" + url.PathEscape(id)
}

// listQuery applies page defaults before the params become a cache key, so an
// explicit page 1 and an omitted page share an entry.
func (c *Client) listQuery(p ListParams) map[string]any {
	q := make(map[string]any, len(p.Filters)+3)
	maps.Copy(q, p.Filters)

	page := p.Page
	if page <= 0 {
		page = 1
	}
	limit := p.Limit
	if limit <= 0 {
		limit = c.config.Cache.DefaultPageSize
	}
	q["page"] = page
	q["limit"] = limit
	if p.Search != "" {
		q["search"] = p.Search
	}
	return q
}
