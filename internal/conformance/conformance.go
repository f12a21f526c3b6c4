// Package conformance is the module's public builder/tester surface
// (spec.md §6 "Programmatic builder"). It wires EndpointCatalog,
// RequestSynthesizer, StateSampler, PropertyEngine and Orchestrator
// together behind the enumerated configuration options, with no
// process-wide mutable state (spec.md §9 "Global configuration" design
// note: every knob is set on the Builder and fixed at build time).
package conformance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"apiconform/internal/catalog"
	"apiconform/internal/engine"
	"apiconform/internal/model"
	"apiconform/internal/orchestrator"
	"apiconform/internal/pattern"
	"apiconform/internal/property"
	"apiconform/internal/state"
	"apiconform/internal/synth"
)

// PropertyKind names a built-in property by its stable identity string
// (spec.md §6), used to address it for exclusion without needing Go
// generics over concrete property types.
type PropertyKind string

const (
	PropGetSafety          PropertyKind = "GET Method Safety"
	PropHeadSafety         PropertyKind = "HEAD Method Safety"
	PropOptionsSafety      PropertyKind = "OPTIONS Method Safety"
	PropPutIdempotency     PropertyKind = "PUT Method Idempotency"
	PropDeleteIdempotency  PropertyKind = "DELETE Method Idempotency"
	PropHeadGetConsistency PropertyKind = "HEAD-GET Response Consistency"
	PropOptionsAllow       PropertyKind = "OPTIONS Allow Header"
	PropNotAllowed         PropertyKind = "405 Method Not Allowed Allow Header"
)

// Builder assembles a Tester. Every option returns the Builder so calls
// chain, matching the teacher's BusinessRulesEngine/config builder style.
type Builder struct {
	catalog *catalog.Catalog
	client  orchestrator.ServiceClient
	source  state.Source
	log     *zap.Logger

	samplerConfig state.SamplerConfig
	excludeEps    []string
	includeEps    []string
	excludedProps map[PropertyKind]struct{}
	customProps   []property.Property

	seed               int64
	parallelEndpoints  bool
	maxEndpointWorkers int
}

// NewBuilder starts a Builder over an already-loaded catalog, a
// ServiceClient to drive the service under test, and a StateSource over
// its backing store.
func NewBuilder(cat *catalog.Catalog, client orchestrator.ServiceClient, source state.Source, log *zap.Logger) *Builder {
	return &Builder{
		catalog:       cat,
		client:        client,
		source:        source,
		log:           log,
		samplerConfig: state.DefaultSamplerConfig(),
		excludedProps: map[PropertyKind]struct{}{},
	}
}

// ConfigureStateTracking overrides the StateSampler configuration
// (spec.md §4.4 "Configuration (enumerated)").
func (b *Builder) ConfigureStateTracking(cfg state.SamplerConfig) *Builder {
	b.samplerConfig = cfg
	return b
}

// ExcludeEndpoints adds glob patterns (spec.md §4.6) for endpoint paths the
// orchestrator should never synthesize requests against.
func (b *Builder) ExcludeEndpoints(patterns ...string) *Builder {
	b.excludeEps = append(b.excludeEps, patterns...)
	return b
}

// IncludeOnlyEndpoints restricts the run to endpoint paths matching any of
// the given glob patterns; non-empty wins over ExcludeEndpoints, mirroring
// StateConfig.IncludeOnly's precedence rule.
func (b *Builder) IncludeOnlyEndpoints(patterns ...string) *Builder {
	b.includeEps = append(b.includeEps, patterns...)
	return b
}

// AddCustomProperty registers an already-built property (typically a
// *property.CustomProperty from property.NewBuilder, but any
// property.Property implementation is accepted).
func (b *Builder) AddCustomProperty(prop property.Property) *Builder {
	b.customProps = append(b.customProps, prop)
	return b
}

// DefineBusinessRule builds and registers a CustomProperty in one step:
// configure receives a fresh property.Builder seeded with name/reason and
// must finish it with Assert.
func (b *Builder) DefineBusinessRule(name, reason string, configure func(*property.Builder) *property.CustomProperty) *Builder {
	prop := configure(property.NewBuilder(name, reason))
	return b.AddCustomProperty(prop)
}

// ExcludeBuiltInProperty removes one built-in property by its stable name.
func (b *Builder) ExcludeBuiltInProperty(kind PropertyKind) *Builder {
	b.excludedProps[kind] = struct{}{}
	return b
}

// ExcludeAllSafetyProperties removes the GET/HEAD/OPTIONS safety properties.
func (b *Builder) ExcludeAllSafetyProperties() *Builder {
	return b.ExcludeBuiltInProperty(PropGetSafety).
		ExcludeBuiltInProperty(PropHeadSafety).
		ExcludeBuiltInProperty(PropOptionsSafety)
}

// ExcludeAllIdempotencyProperties removes the PUT/DELETE idempotency properties.
func (b *Builder) ExcludeAllIdempotencyProperties() *Builder {
	return b.ExcludeBuiltInProperty(PropPutIdempotency).
		ExcludeBuiltInProperty(PropDeleteIdempotency)
}

// ExcludeAllResponseConsistencyProperties removes HEAD-GET consistency and
// the two Allow-header properties.
func (b *Builder) ExcludeAllResponseConsistencyProperties() *Builder {
	return b.ExcludeBuiltInProperty(PropHeadGetConsistency).
		ExcludeBuiltInProperty(PropOptionsAllow).
		ExcludeBuiltInProperty(PropNotAllowed)
}

// WithSeed sets the synthesizer's deterministic seed (spec.md §4.2
// "Determinism").
func (b *Builder) WithSeed(seed int64) *Builder {
	b.seed = seed
	return b
}

// WithParallelEndpoints opts into cross-endpoint concurrency (spec.md §5);
// requests within one endpoint always stay sequential.
func (b *Builder) WithParallelEndpoints(maxWorkers int) *Builder {
	b.parallelEndpoints = true
	b.maxEndpointWorkers = maxWorkers
	return b
}

// BuildAsync assembles every collaborator and returns a runnable Tester.
// ctx is accepted (and checked) for symmetry with spec.md §6's
// buildAsync(cancel) signature even though no collaborator here does I/O
// at build time.
func (b *Builder) BuildAsync(ctx context.Context) (*Tester, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.catalog == nil {
		return nil, fmt.Errorf("apiconform/conformance: a catalog is required")
	}
	if b.client == nil {
		return nil, fmt.Errorf("apiconform/conformance: a ServiceClient is required")
	}

	endpoints := b.filteredEndpoints()
	filtered := &filteredCatalog{inner: b.catalog, endpoints: endpoints}

	props := b.builtins(filtered)
	props = append(props, b.customProps...)

	collab := property.Collaborators{Source: b.source, Client: b.client, Catalog: filtered}
	propEngine := engine.New(props, b.log)
	synthesizer := synth.New(b.source, b.seed)

	orchCfg := orchestrator.Config{
		Seed:               b.seed,
		ParallelEndpoints:  b.parallelEndpoints,
		MaxEndpointWorkers: b.maxEndpointWorkers,
	}

	return &Tester{
		catalog:    filtered,
		synth:      synthesizer,
		client:     b.client,
		propEngine: propEngine,
		collab:     collab,
		orchCfg:    orchCfg,
		log:        b.log,
		properties: props,
	}, nil
}

// builtins constructs the five RFC property families, skipping any
// excluded by kind.
func (b *Builder) builtins(catalogLookup property.CatalogLookup) []property.Property {
	var out []property.Property
	add := func(kind PropertyKind, p property.Property) {
		if _, excluded := b.excludedProps[kind]; !excluded {
			out = append(out, p)
		}
	}
	add(PropGetSafety, property.NewSafetyProperty("GET", b.samplerConfig, b.log))
	add(PropHeadSafety, property.NewSafetyProperty("HEAD", b.samplerConfig, b.log))
	add(PropOptionsSafety, property.NewSafetyProperty("OPTIONS", b.samplerConfig, b.log))
	add(PropPutIdempotency, property.NewIdempotencyProperty("PUT", b.samplerConfig, b.log))
	add(PropDeleteIdempotency, property.NewIdempotencyProperty("DELETE", b.samplerConfig, b.log))
	add(PropHeadGetConsistency, property.NewHeadGetConsistencyProperty())
	add(PropOptionsAllow, property.NewOptionsAllowProperty(catalogLookup))
	add(PropNotAllowed, property.NewNotAllowedProperty())
	return out
}

// filteredEndpoints applies ExcludeEndpoints/IncludeOnlyEndpoints glob
// filters over the full catalog (spec.md §9: glob filtering is a distinct
// algorithm from path-template matching, so this never touches
// pattern.TemplateMatches).
func (b *Builder) filteredEndpoints() []model.Endpoint {
	all := b.catalog.All()
	if len(b.includeEps) == 0 && len(b.excludeEps) == 0 {
		return all
	}
	var out []model.Endpoint
	for _, ep := range all {
		if len(b.includeEps) > 0 {
			if !matchesAny(b.includeEps, ep.PathPattern) {
				continue
			}
		} else if matchesAny(b.excludeEps, ep.PathPattern) {
			continue
		}
		out = append(out, ep)
	}
	return out
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if pattern.GlobMatches(p, path) {
			return true
		}
	}
	return false
}

// filteredCatalog narrows catalog lookups to the endpoints the Builder's
// include/exclude filters selected, while still using the real catalog's
// template matching for MethodsFor/Matches.
type filteredCatalog struct {
	inner     *catalog.Catalog
	endpoints []model.Endpoint
}

func (c *filteredCatalog) All() []model.Endpoint { return c.endpoints }

func (c *filteredCatalog) MethodsFor(concretePath string) map[string]struct{} {
	methods := map[string]struct{}{}
	for _, ep := range c.endpoints {
		if endpointMatchesPath(ep, concretePath) {
			methods[ep.Method] = struct{}{}
		}
	}
	return methods
}

func (c *filteredCatalog) Matches(concretePath, method string) (model.Endpoint, bool) {
	for _, ep := range c.endpoints {
		if ep.Method == method && endpointMatchesPath(ep, concretePath) {
			return ep, true
		}
	}
	return model.Endpoint{}, false
}

func endpointMatchesPath(ep model.Endpoint, concretePath string) bool {
	return pattern.TemplateMatches(ep.PathPattern, concretePath)
}
