// Package synth generates runnable driver programs around user functions.
package synth

import (
	"embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/normalize"
)

// MaxArity bounds the number of arguments a driver spreads into a call.
const MaxArity = 8

//go:embed templates/*.tmpl
var templateFS embed.FS

// Driver templates use {% %} so the braces of the target languages pass through.
var templates = template.Must(
	template.New("drivers").Delims("{%", "%}").ParseFS(templateFS, "templates/*.tmpl"),
)

// Dispatch is how a driver turns the parsed argument value into a call.
type Dispatch string

const (
	// DispatchNone calls with zero arguments.
	DispatchNone Dispatch = "none"
	// DispatchSingle passes the whole value as one argument.
	DispatchSingle Dispatch = "single"
	// DispatchAuto spreads an array when its length matches the function's
	// arity and otherwise passes it whole to a one-parameter function. Typed
	// drivers also pass a one-element array whole when its element does not
	// convert to the parameter type.
	DispatchAuto Dispatch = "auto"
	// DispatchSpread always spreads an array into positional arguments.
	DispatchSpread Dispatch = "spread"
	// DispatchKeyword passes object members by name, or positionally in
	// ascending key order where the language has no named arguments.
	DispatchKeyword Dispatch = "keyword"
)

// Program is a complete generated source file.
type Program struct {
	Language     domain.Language
	Source       string
	FunctionName string
	Shape        normalize.Shape
	Dispatch     Dispatch
	Arity        int
}

// Plan is what a backend renders.
type Plan struct {
	UserCode     string
	FunctionName string
	Args         normalize.Arguments
	Dispatch     Dispatch
}

// Backend renders driver programs for one language.
type Backend interface {
	Language() domain.Language
	ValidIdentifier(name string) bool
	Render(plan Plan) (string, error)
}

// Synthesizer dispatches to the backend registered for each language.
type Synthesizer struct {
	mu       sync.RWMutex
	backends map[domain.Language]Backend
}

// New constructs a synthesizer from the supplied backends.
func New(backends ...Backend) (*Synthesizer, error) {
	s := &Synthesizer{backends: make(map[domain.Language]Backend, len(backends))}

	for _, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("synth backend cannot be nil")
		}
		lang := b.Language()
		if lang == "" {
			return nil, fmt.Errorf("synth backend missing language identifier")
		}
		if _, exists := s.backends[lang]; exists {
			return nil, fmt.Errorf("duplicate synth backend for language %q", lang)
		}
		s.backends[lang] = b
	}

	if len(s.backends) == 0 {
		return nil, fmt.Errorf("at least one synth backend must be registered")
	}
	return s, nil
}

// Default returns a synthesizer with the Python, JavaScript, C++ and Java backends.
func Default() *Synthesizer {
	s, err := New(NewPython(), NewJavaScript(), NewCpp(), NewJava())
	if err != nil {
		panic(err)
	}
	return s
}

// Supports reports whether a backend is registered for lang.
func (s *Synthesizer) Supports(lang domain.Language) bool {
	_, err := s.backendFor(lang)
	return err == nil
}

// Validate checks the parts of a request that do not depend on arguments.
func (s *Synthesizer) Validate(lang domain.Language, userCode, functionName string) error {
	_, err := s.validate(lang, userCode, functionName)
	return err
}

func (s *Synthesizer) validate(lang domain.Language, userCode, functionName string) (Backend, error) {
	backend, err := s.backendFor(lang)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(userCode) == "" {
		return nil, domain.ErrEmptySourceCode
	}
	if !backend.ValidIdentifier(functionName) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFunctionName, functionName)
	}
	return backend, nil
}

// Synthesize wraps userCode with a driver that calls functionName with args.
func (s *Synthesizer) Synthesize(lang domain.Language, userCode, functionName string, args normalize.Arguments) (*Program, error) {
	backend, err := s.validate(lang, userCode, functionName)
	if err != nil {
		return nil, err
	}

	dispatch, arity, err := planDispatch(args)
	if err != nil {
		return nil, err
	}

	source, err := backend.Render(Plan{
		UserCode:     userCode,
		FunctionName: functionName,
		Args:         args,
		Dispatch:     dispatch,
	})
	if err != nil {
		return nil, fmt.Errorf("render %s driver: %w", lang, err)
	}

	return &Program{
		Language:     lang,
		Source:       source,
		FunctionName: functionName,
		Shape:        args.Shape,
		Dispatch:     dispatch,
		Arity:        arity,
	}, nil
}

func (s *Synthesizer) backendFor(lang domain.Language) (Backend, error) {
	s.mu.RLock()
	b, ok := s.backends[lang]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.UnsupportedLanguageError{Language: string(lang)}
	}
	return b, nil
}

// planDispatch chooses the call convention from the argument shape. A bare
// comma list is always several arguments. Arrays and objects are bounded by
// MaxArity; a longer list meant as one argument must be wrapped as [[...]].
func planDispatch(args normalize.Arguments) (Dispatch, int, error) {
	switch args.Shape {
	case normalize.ShapeNull, "":
		return DispatchNone, 0, nil
	case normalize.ShapeScalar:
		return DispatchSingle, 1, nil
	}

	if args.Count > MaxArity {
		return "", 0, &domain.ArgumentCountError{Count: args.Count, Max: MaxArity}
	}
	if args.Shape == normalize.ShapeObject {
		return DispatchKeyword, args.Count, nil
	}
	if args.Strategy == normalize.StrategyWrapped {
		return DispatchSpread, args.Count, nil
	}
	return DispatchAuto, args.Count, nil
}

var (
	plainIdentifier  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	dollarIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
)

// templateBackend renders one of the embedded driver templates.
type templateBackend struct {
	lang       domain.Language
	template   string
	identifier *regexp.Regexp
	prepare    func(userCode string) string
}

type templateData struct {
	UserCode     string
	FunctionName string
	Literal      string
	Mode         string
	ModeName     string
}

func (b *templateBackend) Language() domain.Language { return b.lang }

func (b *templateBackend) ValidIdentifier(name string) bool {
	return b.identifier.MatchString(name)
}

func (b *templateBackend) Render(plan Plan) (string, error) {
	code := plan.UserCode
	if b.prepare != nil {
		code = b.prepare(code)
	}

	var sb strings.Builder
	err := templates.ExecuteTemplate(&sb, b.template, templateData{
		UserCode:     code,
		FunctionName: plan.FunctionName,
		Literal:      escapeLiteral(b.lang, plan.Args.JSON),
		Mode:         string(plan.Dispatch),
		ModeName:     strings.ToUpper(string(plan.Dispatch[:1])) + string(plan.Dispatch[1:]),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
