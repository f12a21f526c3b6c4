// Package synth builds concrete model.Request values for an endpoint,
// drawing parameter values from schema constraints and, for
// identifier-typed path parameters, from live identifiers obtained through
// a state.Source. Grounded on the teacher's internal/testdata.Generator
// (schema-driven sample generation) and internal/testdata/generator.DBGenerator
// (live-value lookups against the backing store), unified into the single
// Synthesizer the spec describes.
package synth

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"

	"apiconform/internal/model"
	"apiconform/internal/state"
)

// Synthesizer builds Requests for an Endpoint.
type Synthesizer struct {
	source state.Source // may be nil: identifier params then always fall back to schema synthesis
	rng    *rand.Rand
}

// New builds a Synthesizer. seed makes the sequence reproducible: the same
// seed, catalog and live data always yields the same Requests (spec.md §4.2
// "Determinism").
func New(source state.Source, seed int64) *Synthesizer {
	return &Synthesizer{source: source, rng: rand.New(rand.NewSource(seed))}
}

// Synthesize returns up to k Requests for endpoint. Requests that cannot
// get a value for a required path parameter are dropped rather than
// returned malformed (spec.md §4.2 step 1).
func (s *Synthesizer) Synthesize(ctx context.Context, endpoint model.Endpoint, k int) []model.Request {
	var out []model.Request
	for i := 0; i < k; i++ {
		req, ok := s.synthesizeOne(ctx, endpoint)
		if ok {
			out = append(out, req)
		}
	}
	return out
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, endpoint model.Endpoint) (model.Request, bool) {
	path := endpoint.PathPattern
	var query []model.KV
	var headers []model.KV

	for _, p := range endpoint.Parameters {
		switch p.In {
		case model.InPath:
			value, ok := s.valueForPathParam(ctx, p)
			if !ok {
				if p.Required {
					return model.Request{}, false
				}
				continue
			}
			path = strings.Replace(path, "{"+p.Name+"}", url.PathEscape(fmt.Sprint(value)), 1)
		case model.InQuery:
			if !p.Required && s.rng.Float64() >= optionalFieldProbability {
				continue
			}
			value := generateValue(s.rng, p.Schema, 0)
			query = append(query, model.KV{Key: p.Name, Value: fmt.Sprint(value)})
		case model.InHeader:
			if !p.Required && s.rng.Float64() >= optionalFieldProbability {
				continue
			}
			value := generateValue(s.rng, p.Schema, 0)
			headers = append(headers, model.KV{Key: p.Name, Value: fmt.Sprint(value)})
		case model.InCookie:
			value := generateValue(s.rng, p.Schema, 0)
			headers = append(headers, model.KV{Key: "Cookie", Value: p.Name + "=" + fmt.Sprint(value)})
		}
	}

	if strings.Contains(path, "{") {
		// A path placeholder survived substitution: unresolvable.
		return model.Request{}, false
	}

	req := model.Request{
		Method:  endpoint.Method,
		Path:    buildPath(path, query),
		Query:   query,
		Headers: headers,
	}

	if hasUserAgent := len(req.HeaderValues("User-Agent")) > 0; !hasUserAgent {
		req.SetHeader("User-Agent", "apiconform/1.0")
	}

	if isBodyMethod(endpoint.Method) && endpoint.Body != nil {
		data, contentType, err := buildBody(s.rng, *endpoint.Body)
		if err == nil {
			req.Body = data
			req.BodyCT = contentType
			req.SetHeader("Content-Type", contentType)
		}
	}

	return req, true
}

func isBodyMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	default:
		return false
	}
}

func buildPath(path string, query []model.KV) string {
	if len(query) == 0 {
		return path
	}
	values := url.Values{}
	for _, kv := range query {
		values.Add(kv.Key, kv.Value)
	}
	return path + "?" + values.Encode()
}

// valueForPathParam implements spec.md §4.2 step 1: try a live identifier
// from the state source first, fall back to schema synthesis.
func (s *Synthesizer) valueForPathParam(ctx context.Context, p model.Parameter) (interface{}, bool) {
	if looksLikeIdentifier(p.Name, p.Schema) && s.source != nil {
		if v, ok := s.liveIdentifier(ctx, p.Name); ok {
			return v, true
		}
	}
	if p.Schema == nil {
		return randomAlphaNumeric(s.rng, 1, 10), true
	}
	return generateValue(s.rng, p.Schema, 0), true
}

func looksLikeIdentifier(name string, schema *model.Schema) bool {
	lower := strings.ToLower(name)
	if lower == "id" || strings.HasSuffix(lower, "id") {
		return true
	}
	if schema != nil && (schema.Kind == model.KindInteger || schema.Kind == model.KindString) {
		return strings.Contains(lower, "id")
	}
	return false
}

// entityStem strips "id"/"_"/"-" to guess the semantic entity name a path
// parameter like "userId" or "order_id" refers to (spec.md §4.2 step 1).
func entityStem(paramName string) string {
	lower := strings.ToLower(paramName)
	lower = strings.TrimSuffix(lower, "id")
	lower = strings.Trim(lower, "_-")
	return lower
}

func (s *Synthesizer) liveIdentifier(ctx context.Context, paramName string) (interface{}, bool) {
	stem := entityStem(paramName)
	if stem == "" {
		return nil, false
	}
	kinds, err := s.source.EntityKinds(ctx)
	if err != nil {
		return nil, false
	}
	var candidate string
	for _, k := range kinds {
		lowerKind := strings.ToLower(k.Name)
		if strings.Contains(lowerKind, stem) || strings.Contains(stem, lowerKind) {
			candidate = k.Name
			break
		}
	}
	if candidate == "" {
		return nil, false
	}
	key, ok, err := s.source.RandomKey(ctx, candidate)
	if err != nil || !ok {
		return nil, false
	}
	return key, true
}

// ParseIntOrZero parses s as a base-10 int64, returning 0 when s is not a
// valid integer.
func ParseIntOrZero(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
