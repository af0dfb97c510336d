// Package catalog holds the versioned, closed vocabulary the orchestrators
// validate against: the stage-type enumeration, default stage durations and
// the input schema of every orchestrator.
//
// The vocabulary is declared in CUE (catalog.cue, embedded at build time).
// Input validation unifies the caller's JSON with the matching definition;
// definitions are closed, so unknown fields are rejected as well as
// malformed ones.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/phdtrack/internal/domain"
)

//go:embed catalog.cue
var catalogSource string

// Input definitions, one per orchestrator.
const (
	DefBaselineInput   = "#BaselineInput"
	DefGenerateInput   = "#GenerateInput"
	DefCommitInput     = "#CommitInput"
	DefEditInput       = "#EditInput"
	DefProgressInput   = "#ProgressInput"
	DefAssessmentInput = "#AssessmentInput"
	DefAnalyticsInput  = "#AnalyticsInput"
)

// Catalog is a compiled catalog.
//
// Thread-safety: cue values are not safe for concurrent unification, so
// every method that touches the CUE runtime holds mu.
type Catalog struct {
	mu   sync.Mutex
	ctx  *cue.Context
	root cue.Value

	version    int
	stageTypes []domain.StageType
	durations  map[domain.StageType]int
}

// UnknownStageTypeError reports a stage category outside the enumeration.
type UnknownStageTypeError struct {
	Value   string
	Version int
	Known   []domain.StageType
}

func (e *UnknownStageTypeError) Error() string {
	return fmt.Sprintf("stage type %q is not in catalog version %d", e.Value, e.Version)
}

// SchemaError reports an input that does not satisfy its definition.
type SchemaError struct {
	Definition string
	Err        error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %v", e.Definition, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// Default returns the process-wide catalog compiled from the embedded source.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load()
	})
	return defaultCatalog, defaultErr
}

// Load compiles the embedded catalog.
func Load() (*Catalog, error) {
	return compile(catalogSource)
}

func compile(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src, cue.Filename("catalog.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog: %w", err)
	}
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	c := &Catalog{ctx: ctx, root: root}

	version, err := root.LookupPath(cue.ParsePath("version")).Int64()
	if err != nil {
		return nil, fmt.Errorf("catalog version: %w", err)
	}
	c.version = int(version)

	var names []string
	if err := root.LookupPath(cue.ParsePath("stageTypes")).Decode(&names); err != nil {
		return nil, fmt.Errorf("catalog stageTypes: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog stageTypes: empty enumeration")
	}
	for _, n := range names {
		c.stageTypes = append(c.stageTypes, domain.StageType(n))
	}

	var durations map[string]int
	if err := root.LookupPath(cue.ParsePath("defaultDurationMonths")).Decode(&durations); err != nil {
		return nil, fmt.Errorf("catalog defaultDurationMonths: %w", err)
	}
	c.durations = make(map[domain.StageType]int, len(durations))
	for k, v := range durations {
		c.durations[domain.StageType(k)] = v
	}

	return c, nil
}

// Version returns the enumeration version.
func (c *Catalog) Version() int {
	return c.version
}

// StageTypes returns the enumeration in declaration order.
func (c *Catalog) StageTypes() []domain.StageType {
	return slices.Clone(c.stageTypes)
}

// StageType resolves raw to a member of the enumeration. Matching is exact:
// "RESEARCH" is not "research". Unknown values are never coerced to a
// default category.
func (c *Catalog) StageType(raw string) (domain.StageType, error) {
	st := domain.StageType(raw)
	if slices.Contains(c.stageTypes, st) {
		return st, nil
	}
	return "", &UnknownStageTypeError{Value: raw, Version: c.version, Known: c.StageTypes()}
}

// DefaultDuration returns the default stage length in months, or 0 for a
// type without a declared default.
func (c *Catalog) DefaultDuration(st domain.StageType) int {
	return c.durations[st]
}

// ValidateInput checks v (any JSON-marshalable value) against the named
// definition. The value must be concrete and may not carry fields the
// definition does not declare.
func (c *Catalog) ValidateInput(definition string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &SchemaError{Definition: definition, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	def := c.root.LookupPath(cue.ParsePath(definition))
	if !def.Exists() {
		return &SchemaError{Definition: definition, Err: fmt.Errorf("definition not found")}
	}

	// JSON is valid CUE, so the payload compiles as a CUE value directly.
	val := c.ctx.CompileBytes(data, cue.Filename("input.json"))
	if err := val.Err(); err != nil {
		return &SchemaError{Definition: definition, Err: err}
	}
	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Definition: definition, Err: err}
	}
	return nil
}
