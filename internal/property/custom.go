package property

import (
	"context"

	"apiconform/internal/model"
	"apiconform/internal/pattern"
	"apiconform/internal/state"
)

// Predicate is a boolean test over a synthesized request.
type Predicate func(req *model.Request) bool

// Assertion is the mandatory pass/fail judgment of a CustomProperty.
type Assertion func(ctx context.Context, req *model.Request, resp *model.Response, source state.Source) (bool, error)

// CustomProperty is an immutable business rule assembled by Builder,
// grounded on the teacher's BusinessRulesEngine builder surface in
// internal/testdata/generator/business_rules.go.
type CustomProperty struct {
	name             string
	reason           string
	endpointPatterns []string
	methods          map[string]struct{}
	predicates       []Predicate
	assertion        Assertion
}

func (c *CustomProperty) Name() string         { return c.name }
func (c *CustomProperty) RFCReference() string  { return "" }
func (c *CustomProperty) Description() string  { return c.reason }

func (c *CustomProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if len(c.methods) > 0 {
		if _, ok := c.methods[req.Method]; !ok {
			return skip()
		}
	}
	if len(c.endpointPatterns) > 0 && !c.matchesAnyPattern(pathOnly(req.Path)) {
		return skip()
	}
	for _, pred := range c.predicates {
		if !pred(req) {
			return skip()
		}
	}

	ok, err := c.assertion(ctx, req, resp, collab.Source)
	if err != nil {
		return model.Fail(c.reason, err.Error())
	}
	if !ok {
		return model.Fail(c.reason, "")
	}
	return model.Pass()
}

func (c *CustomProperty) matchesAnyPattern(path string) bool {
	for _, p := range c.endpointPatterns {
		if pattern.GlobMatches(p, path) {
			return true
		}
	}
	return false
}

// Builder assembles a CustomProperty, per spec.md §4.6.
type Builder struct {
	prop CustomProperty
}

// NewBuilder starts a rule named name with description/failure context reason.
func NewBuilder(name, reason string) *Builder {
	return &Builder{prop: CustomProperty{name: name, reason: reason, methods: map[string]struct{}{}}}
}

// ForEndpoints restricts the rule to paths matching any of the given glob
// patterns ("*" matches ".*", "{name}" matches "[^/]+").
func (b *Builder) ForEndpoints(patterns ...string) *Builder {
	b.prop.endpointPatterns = append(b.prop.endpointPatterns, patterns...)
	return b
}

// ForMethods restricts the rule to the given HTTP methods.
func (b *Builder) ForMethods(methods ...string) *Builder {
	for _, m := range methods {
		b.prop.methods[m] = struct{}{}
	}
	return b
}

// When adds a predicate over the request; all predicates must hold.
func (b *Builder) When(p Predicate) *Builder {
	b.prop.predicates = append(b.prop.predicates, p)
	return b
}

// Assert sets the mandatory pass/fail judgment and finishes the rule.
func (b *Builder) Assert(assertion Assertion) *CustomProperty {
	b.prop.assertion = assertion
	clone := b.prop
	return &clone
}
