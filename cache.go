package mathexpr

import (
	"context"
	"errors"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CachedService interprets each distinct text at most once and shares the
// resulting expression among all callers. Callers must not close expressions
// they get from a CachedService; closing the cache closes them all.
type CachedService struct {
	src   Interpreter
	log   logrus.FieldLogger
	group singleflight.Group

	mu     sync.Mutex
	store  store
	closed bool
}

// store holds cached expressions by source text.
type store interface {
	get(text string) (*ComputedExpression, bool)
	put(text string, e *ComputedExpression)
	all() []*ComputedExpression
	len() int
	purge()
}

// NewCachedService creates a cache in front of src.
func NewCachedService(src Interpreter, opts ...CacheOption) (*CachedService, error) {
	var c cacheConfig
	for _, opt := range opts {
		c = opt.cacheOption(c)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	var st store = mapStore{}
	if c.capacity > 0 {
		l, err := lru.New(c.capacity)
		if err != nil {
			return nil, err
		}
		st = lruStore{l}
	}
	return &CachedService{src: src, log: c.log, store: st}, nil
}

// Interpret returns the cached expression for text, interpreting it if it is
// not cached. Concurrent calls for the same text share one interpretation.
// Errors are not cached. A caller that shared an interpretation cancelled by
// another caller's context interprets again with its own.
func (c *CachedService) Interpret(ctx context.Context, text string) (*ComputedExpression, error) {
	e, err := c.lookup(text)
	if e != nil || err != nil {
		return e, err
	}
	e, err, shared := c.interpret(ctx, text)
	if shared && ctx.Err() == nil && isContextErr(err) {
		c.log.WithField("expression", text).Debug("shared interpretation cancelled, retrying")
		e, err, shared = c.interpret(ctx, text)
	}
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"expression": text, "shared": shared}).Trace("cache miss")
	return e, nil
}

func (c *CachedService) interpret(ctx context.Context, text string) (*ComputedExpression, error, bool) {
	v, err, shared := c.group.Do(text, func() (any, error) {
		if e, err := c.lookup(text); e != nil || err != nil {
			return e, err
		}
		e, err := c.src.Interpret(ctx, text)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			e.Close()
			return nil, ErrClosed
		}
		c.store.put(text, e)
		return e, nil
	})
	if err != nil {
		return nil, err, shared
	}
	return v.(*ComputedExpression), nil, shared
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *CachedService) lookup(text string) (*ComputedExpression, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	e, ok := c.store.get(text)
	if ok {
		c.log.WithField("expression", text).Trace("cache hit")
	}
	return e, nil
}

// Len returns the number of cached expressions.
func (c *CachedService) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.len()
}

// Close closes every cached expression and empties the cache. Later calls to
// Interpret return ErrClosed.
func (c *CachedService) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, e := range c.store.all() {
		e.Close()
	}
	c.store.purge()
	return nil
}

// mapStore is an unbounded store.
type mapStore map[string]*ComputedExpression

func (m mapStore) get(text string) (*ComputedExpression, bool) {
	e, ok := m[text]
	return e, ok
}

func (m mapStore) put(text string, e *ComputedExpression) {
	m[text] = e
}

func (m mapStore) all() []*ComputedExpression {
	r := make([]*ComputedExpression, 0, len(m))
	for _, e := range m {
		r = append(r, e)
	}
	return r
}

func (m mapStore) len() int {
	return len(m)
}

func (m mapStore) purge() {
	clear(m)
}

// lruStore is a store bounded by an LRU policy.
type lruStore struct {
	c *lru.Cache
}

func (s lruStore) get(text string) (*ComputedExpression, bool) {
	v, ok := s.c.Get(text)
	if !ok {
		return nil, false
	}
	return v.(*ComputedExpression), true
}

func (s lruStore) put(text string, e *ComputedExpression) {
	s.c.Add(text, e)
}

func (s lruStore) all() []*ComputedExpression {
	keys := s.c.Keys()
	r := make([]*ComputedExpression, 0, len(keys))
	for _, k := range keys {
		if v, ok := s.c.Peek(k); ok {
			r = append(r, v.(*ComputedExpression))
		}
	}
	return r
}

func (s lruStore) len() int {
	return s.c.Len()
}

func (s lruStore) purge() {
	s.c.Purge()
}
