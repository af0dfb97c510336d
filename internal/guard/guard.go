package guard

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
)

// Access is the direction of an entity access.
type Access string

const (
	AccessRead  Access = "read"
	AccessWrite Access = "write"
)

// Policy is a pair of allow-lists.
type Policy struct {
	Name     string
	Readable mapset.Set[domain.EntityKind]
	Writable mapset.Set[domain.EntityKind]
}

// NewPolicy builds a policy from explicit kind lists.
func NewPolicy(name string, readable, writable []domain.EntityKind) Policy {
	return Policy{
		Name:     name,
		Readable: mapset.NewSet(readable...),
		Writable: mapset.NewSet(writable...),
	}
}

// AnalyticsPolicy lets analytics read the timeline graph, progress and
// assessments, and append snapshots. Nothing else.
func AnalyticsPolicy() Policy {
	return NewPolicy("analytics",
		[]domain.EntityKind{
			domain.KindUser,
			domain.KindCommittedTimeline,
			domain.KindTimelineStage,
			domain.KindTimelineMilestone,
			domain.KindProgressEvent,
			domain.KindJourneyAssessment,
			domain.KindDraftTimeline,
		},
		[]domain.EntityKind{
			domain.KindAnalyticsSnapshot,
		},
	)
}

// Violation is one disallowed access.
type Violation struct {
	Access Access
	Kind   domain.EntityKind
}

func (v Violation) String() string {
	return string(v.Access) + ":" + string(v.Kind)
}

// Guard tracks the accesses of one pipeline attempt.
type Guard struct {
	policy Policy

	mu         sync.Mutex
	reads      mapset.Set[domain.EntityKind]
	writes     mapset.Set[domain.EntityKind]
	violations []Violation
}

// New returns a guard with empty access sets.
func New(p Policy) *Guard {
	return &Guard{
		policy: p,
		reads:  mapset.NewThreadUnsafeSet[domain.EntityKind](),
		writes: mapset.NewThreadUnsafeSet[domain.EntityKind](),
	}
}

// Read declares a read of kind.
func (g *Guard) Read(kind domain.EntityKind) error {
	return g.access(AccessRead, kind)
}

// Write declares a write of kind.
func (g *Guard) Write(kind domain.EntityKind) error {
	return g.access(AccessWrite, kind)
}

func (g *Guard) access(a Access, kind domain.EntityKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	allowed, touched := g.policy.Readable, g.reads
	if a == AccessWrite {
		allowed, touched = g.policy.Writable, g.writes
	}
	touched.Add(kind)
	if allowed.Contains(kind) {
		return nil
	}
	v := Violation{Access: a, Kind: kind}
	g.violations = append(g.violations, v)
	return g.violationError([]Violation{v})
}

// Violations returns the violations seen so far.
func (g *Guard) Violations() []Violation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.violations)
}

// Log returns the access log with kinds sorted.
func (g *Guard) Log() engine.AccessLog {
	g.mu.Lock()
	defer g.mu.Unlock()

	violations := make([]string, 0, len(g.violations))
	for _, v := range g.violations {
		violations = append(violations, v.String())
	}
	return engine.AccessLog{
		Reads:      sortedKinds(g.reads),
		Writes:     sortedKinds(g.writes),
		Violations: violations,
	}
}

// Sweep verifies the whole attempt against the policy. It returns the
// access log evidence, and READ_ONLY_VIOLATION if anything disallowed was
// touched at any point.
func (g *Guard) Sweep() (engine.Evidence, error) {
	ev := engine.Evidence{
		Source:     "guard." + g.policy.Name,
		Confidence: 100,
		Payload:    g.Log(),
	}

	g.mu.Lock()
	var stray []Violation
	for _, k := range g.reads.ToSlice() {
		if !g.policy.Readable.Contains(k) {
			stray = append(stray, Violation{Access: AccessRead, Kind: k})
		}
	}
	for _, k := range g.writes.ToSlice() {
		if !g.policy.Writable.Contains(k) {
			stray = append(stray, Violation{Access: AccessWrite, Kind: k})
		}
	}
	g.mu.Unlock()

	if len(stray) > 0 {
		slices.SortFunc(stray, func(a, b Violation) int { return strings.Compare(a.String(), b.String()) })
		return ev, g.violationError(stray)
	}
	return ev, nil
}

func (g *Guard) violationError(vs []Violation) *engine.Error {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return engine.NewContractError(engine.ErrCodeReadOnlyViolation,
		fmt.Sprintf("%s pipeline accessed disallowed entities: %s", g.policy.Name, strings.Join(parts, ", ")),
		map[string]string{
			"policy":     g.policy.Name,
			"violations": strings.Join(parts, ","),
			"hint":       "Read-only pipelines may only write their own output entity",
		})
}

func sortedKinds(s mapset.Set[domain.EntityKind]) []string {
	out := make([]string, 0, s.Cardinality())
	for _, k := range s.ToSlice() {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return out
}

// Load runs fn after declaring a read of kind.
func Load[T any](g *Guard, kind domain.EntityKind, fn func() (T, error)) (T, error) {
	if err := g.Read(kind); err != nil {
		var zero T
		return zero, err
	}
	return fn()
}

// Store runs fn after declaring a write of kind.
func Store(g *Guard, kind domain.EntityKind, fn func() error) error {
	if err := g.Write(kind); err != nil {
		return err
	}
	return fn()
}
