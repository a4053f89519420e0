package mathexpr

import (
	"github.com/sirupsen/logrus"
)

// Option is an option for creating a Service.
type Option interface {
	serviceOption(serviceConfig) serviceConfig
}

type (
	defopt   MathDefinition
	styleopt PrecedenceStyle
	logopt   struct{ log logrus.FieldLogger }
	libsopt  []Library
	nostdopt struct{}
)

// serviceConfig holds the settings for a new Service.
type serviceConfig struct {
	def   MathDefinition
	style *PrecedenceStyle
	log   logrus.FieldLogger
	libs  []Library
	// nostd indicates that the standard library is not registered.
	nostd bool
}

// WithDefinition sets the symbols the service recognizes. The default is
// DefaultDefinition.
func WithDefinition(def MathDefinition) Option {
	return defopt(def)
}

func (o defopt) serviceOption(c serviceConfig) serviceConfig {
	c.def = MathDefinition(o)
	return c
}

// WithPrecedenceStyle overrides the precedence style of the definition,
// regardless of the order options are given.
func WithPrecedenceStyle(style PrecedenceStyle) Option {
	return styleopt(style)
}

func (o styleopt) serviceOption(c serviceConfig) serviceConfig {
	s := PrecedenceStyle(o)
	c.style = &s
	return c
}

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return logopt{log}
}

func (o logopt) serviceOption(c serviceConfig) serviceConfig {
	c.log = o.log
	return c
}

// WithFunctions registers libraries of functions in addition to the standard
// library. Later libraries override earlier ones.
func WithFunctions(libs ...Library) Option {
	return libsopt(libs)
}

func (o libsopt) serviceOption(c serviceConfig) serviceConfig {
	c.libs = append(c.libs, o...)
	return c
}

// WithoutStandardFunctions leaves the standard library unregistered, so only
// functions from WithFunctions and RegisterFunctions are available.
func WithoutStandardFunctions() Option {
	return nostdopt{}
}

func (nostdopt) serviceOption(c serviceConfig) serviceConfig {
	c.nostd = true
	return c
}

// CacheOption is an option for creating a CachedService.
type CacheOption interface {
	cacheOption(cacheConfig) cacheConfig
}

type (
	capopt      int
	cachelogopt struct{ log logrus.FieldLogger }
)

type cacheConfig struct {
	capacity int
	log      logrus.FieldLogger
}

// WithCapacity bounds the number of cached expressions. When the cache is
// full, the least recently used expression is dropped. Dropped expressions are
// not closed, since callers may still hold them. A capacity of zero or less
// means no bound, which is the default.
func WithCapacity(n int) CacheOption {
	return capopt(n)
}

func (o capopt) cacheOption(c cacheConfig) cacheConfig {
	c.capacity = int(o)
	return c
}

// WithCacheLogger sets the cache's logger. The default is
// logrus.StandardLogger().
func WithCacheLogger(log logrus.FieldLogger) CacheOption {
	return cachelogopt{log}
}

func (o cachelogopt) cacheOption(c cacheConfig) cacheConfig {
	c.log = o.log
	return c
}
