package mathexpr

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Interpreter turns expression text into computed expressions.
type Interpreter interface {
	Interpret(ctx context.Context, text string) (*ComputedExpression, error)
}

// Service interprets expressions. It is safe for concurrent use.
type Service struct {
	def MathDefinition
	log logrus.FieldLogger

	mu   sync.RWMutex
	libs []Library
	// funcs is the catalog built from libs, or nil if it must be rebuilt.
	funcs  *catalog
	closed bool
}

var (
	_ Interpreter = (*Service)(nil)
	_ Interpreter = (*CachedService)(nil)
)

// NewService creates a service. The definition is validated, and any
// problems with it are returned together.
func NewService(opts ...Option) (*Service, error) {
	c := serviceConfig{def: DefaultDefinition()}
	for _, opt := range opts {
		c = opt.serviceOption(c)
	}
	if c.style != nil {
		c.def.OperatorPrecedenceStyle = *c.style
	}
	if err := c.def.Validate(); err != nil {
		return nil, err
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	s := &Service{def: c.def, log: c.log}
	if !c.nostd {
		s.libs = append(s.libs, StandardLibrary())
	}
	for _, lib := range c.libs {
		s.libs = append(s.libs, copyLibrary(lib))
	}
	return s, nil
}

var std struct {
	once sync.Once
	s    *Service
	err  error
}

// defaultService returns the service used by Eval.
func defaultService() (*Service, error) {
	std.once.Do(func() {
		std.s, std.err = NewService()
	})
	return std.s, std.err
}

// Definition returns the service's definition.
func (s *Service) Definition() MathDefinition {
	return s.def
}

// Interpret interprets text. The result is a computed expression, which may
// be unrecognized if text is malformed. The error is ErrEmptyExpression if
// text is blank, ErrClosed if the service is closed, or the context's error
// if ctx ends during interpretation.
func (s *Service) Interpret(ctx context.Context, text string) (*ComputedExpression, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyExpression
	}
	funcs, err := s.catalog()
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("expression", text)
	log.Debug("interpret")
	w := newWorkingSet(ctx, s.def, funcs)
	tree, err := w.interpret(text)
	if err != nil {
		if !soft(err) {
			log.WithError(err).Debug("interpretation aborted")
			return nil, err
		}
		log.WithError(err).Debug("unrecognized")
		return unrecognizedExpression(text, err), nil
	}
	e := newComputedExpression(text, tree, w.params)
	log.WithFields(logrus.Fields{
		"tree":       tree,
		"constant":   e.constant,
		"parameters": e.params.names(),
	}).Debug("interpreted")
	return e, nil
}

// catalog returns the function catalog, building it if needed.
func (s *Service) catalog() (*catalog, error) {
	s.mu.RLock()
	c, closed := s.funcs, s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if c != nil {
		return c, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.funcs == nil {
		s.funcs = buildCatalog(s.libs, s.log)
		s.log.WithField("libraries", len(s.libs)).Debug("built function catalog")
	}
	return s.funcs, nil
}

// RegisterFunctions adds a library. Its functions override any registered
// earlier with the same name and number of parameters. Invalid functions are
// skipped, and the returned error describes them; the valid functions are
// registered regardless.
func (s *Service) RegisterFunctions(lib Library) error {
	lib = copyLibrary(lib)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.libs = append(s.libs, lib)
	s.funcs = nil
	return lib.validate()
}

// RegisteredFunctions lists the prototypes of every callable function, e.g.
// "log(numeric, numeric)", in sorted order.
func (s *Service) RegisteredFunctions() []string {
	c, err := s.catalog()
	if err != nil {
		return nil
	}
	return c.prototypes()
}

// Close releases the service. Later calls to Interpret return ErrClosed.
// Expressions already interpreted remain usable.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.libs = nil
	s.funcs = nil
	return nil
}

// copyLibrary copies the function list so later changes by the caller are
// not seen.
func copyLibrary(lib Library) Library {
	fns := make([]Function, len(lib.Functions))
	for i, f := range lib.Functions {
		f.Params = append([]Kind(nil), f.Params...)
		fns[i] = f
	}
	lib.Functions = fns
	return lib
}
