// Package catalog parses an OpenAPI 3.x document into the normalized
// Endpoint sequence the rest of the engine consumes. Grounded on the
// teacher's internal/parser.SwaggerParser, generalized to load from either
// an HTTP URL or a local file and to keep the full Schema tree (not just
// raw map[string]interface{}) so the synthesizer can walk it directly.
package catalog

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"apiconform/internal/model"
	"apiconform/internal/pattern"
)

// Catalog is the immutable, loaded view of an OpenAPI document.
type Catalog struct {
	endpoints []model.Endpoint
}

// Load fetches (if source looks like a URL) or reads an OpenAPI document
// and builds a Catalog. Malformed operations are skipped and logged rather
// than failing the whole load (spec.md §4.1 "Errors").
func Load(source string, log *zap.Logger) (*Catalog, error) {
	doc, err := loadDocument(source)
	if err != nil {
		return nil, fmt.Errorf("apiconform/catalog: load %s: %w", source, err)
	}
	return FromDocument(doc, log), nil
}

// DefaultSwaggerPaths mirrors the teacher's probing list of conventional
// swagger.json locations, tried in order when the caller gives a bare base
// URL instead of a concrete document path.
var DefaultSwaggerPaths = []string{
	"/swagger/v1/swagger.json",
	"/swagger.json",
	"/v1/swagger.json",
	"/openapi.json",
}

// LoadFromBaseURL tries DefaultSwaggerPaths under baseURL in order,
// returning the first one that parses successfully.
func LoadFromBaseURL(baseURL string, log *zap.Logger) (*Catalog, error) {
	var lastErr error
	for _, p := range DefaultSwaggerPaths {
		cat, err := Load(strings.TrimRight(baseURL, "/")+p, log)
		if err == nil {
			return cat, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("apiconform/catalog: no swagger document found under %s: %w", baseURL, lastErr)
}

func loadDocument(source string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Get(source)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return loader.LoadFromData(body)
	}
	return loader.LoadFromFile(source)
}

// FromDocument builds a Catalog from an already-parsed OpenAPI document.
func FromDocument(doc *openapi3.T, log *zap.Logger) *Catalog {
	var endpoints []model.Endpoint
	for path, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			ep, err := buildEndpoint(doc, path, method, op)
			if err != nil {
				if log != nil {
					log.Warn("skipping unparsable endpoint",
						zap.String("method", method), zap.String("path", path), zap.Error(err))
				}
				continue
			}
			endpoints = append(endpoints, ep)
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].PathPattern != endpoints[j].PathPattern {
			return endpoints[i].PathPattern < endpoints[j].PathPattern
		}
		return endpoints[i].Method < endpoints[j].Method
	})
	return &Catalog{endpoints: endpoints}
}

func buildEndpoint(doc *openapi3.T, path, method string, op *openapi3.Operation) (model.Endpoint, error) {
	ep := model.Endpoint{
		Method:      strings.ToUpper(method),
		PathPattern: path,
		Responses:   map[int]model.ResponseSpec{},
	}

	for _, p := range op.Parameters {
		if p.Value == nil {
			continue
		}
		param := model.Parameter{
			Name:     p.Value.Name,
			In:       model.ParamLocation(p.Value.In),
			Required: p.Value.Required || p.Value.In == "path",
			Schema:   convertSchema(p.Value.Schema),
			Example:  p.Value.Example,
		}
		ep.Parameters = append(ep.Parameters, param)
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		for _, mt := range preferredMediaTypes(op.RequestBody.Value.Content) {
			content := op.RequestBody.Value.Content[mt]
			if content == nil || content.Schema == nil {
				continue
			}
			body := model.MediaBody{MediaType: mt, Schema: convertSchema(content.Schema)}
			if ep.Body == nil {
				ep.Body = &body
			} else {
				ep.BodyAlts = append(ep.BodyAlts, body)
			}
		}
	}

	if op.Responses != nil {
		for statusStr, respRef := range op.Responses.Map() {
			if respRef == nil || respRef.Value == nil {
				continue
			}
			code, ok := parseStatus(statusStr)
			if !ok {
				continue
			}
			desc := ""
			if respRef.Value.Description != nil {
				desc = *respRef.Value.Description
			}
			var body *model.MediaBody
			if content, ok := respRef.Value.Content["application/json"]; ok && content != nil {
				body = &model.MediaBody{MediaType: "application/json", Schema: convertSchema(content.Schema)}
			}
			ep.Responses[code] = model.ResponseSpec{Description: desc, Body: body}
		}
	}

	return ep, nil
}

// preferredMediaTypes orders JSON first, then XML, then everything else, so
// the synthesizer's "prefer JSON if offered" rule (spec.md §4.2) has a
// stable input order.
func preferredMediaTypes(content openapi3.Content) []string {
	var json, xml, rest []string
	for mt := range content {
		switch {
		case strings.Contains(mt, "json"):
			json = append(json, mt)
		case strings.Contains(mt, "xml"):
			xml = append(xml, mt)
		default:
			rest = append(rest, mt)
		}
	}
	sort.Strings(json)
	sort.Strings(xml)
	sort.Strings(rest)
	return append(append(json, xml...), rest...)
}

func parseStatus(s string) (int, bool) {
	if s == "default" || len(s) != 3 {
		return 0, false
	}
	code := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		code = code*10 + int(r-'0')
	}
	return code, true
}

func convertSchema(ref *openapi3.SchemaRef) *model.Schema {
	if ref == nil || ref.Value == nil {
		return nil
	}
	return convertSchemaValue(ref.Value, map[*openapi3.Schema]*model.Schema{})
}

func convertSchemaValue(s *openapi3.Schema, seen map[*openapi3.Schema]*model.Schema) *model.Schema {
	if s == nil {
		return nil
	}
	if existing, ok := seen[s]; ok {
		return existing
	}

	out := &model.Schema{Kind: schemaKind(s)}
	seen[s] = out

	if s.MinLength > 0 {
		v := int(s.MinLength)
		out.MinLength = &v
	}
	if s.MaxLength != nil {
		v := int(*s.MaxLength)
		out.MaxLength = &v
	}
	out.Pattern = s.Pattern
	out.Format = s.Format
	out.Enum = s.Enum
	if s.Min != nil {
		out.Minimum = s.Min
	}
	if s.Max != nil {
		out.Maximum = s.Max
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = map[string]*model.Schema{}
		for name, propRef := range s.Properties {
			out.Properties[name] = convertSchema(propRef)
		}
	}
	out.Required = append([]string(nil), s.Required...)
	return out
}

func schemaKind(s *openapi3.Schema) model.SchemaKind {
	if s.Type == nil {
		if len(s.Properties) > 0 {
			return model.KindObject
		}
		return model.KindString
	}
	switch {
	case s.Type.Is("object"):
		return model.KindObject
	case s.Type.Is("array"):
		return model.KindArray
	case s.Type.Is("integer"):
		return model.KindInteger
	case s.Type.Is("number"):
		return model.KindNumber
	case s.Type.Is("boolean"):
		return model.KindBoolean
	default:
		return model.KindString
	}
}

// All returns every endpoint, sorted by path template and then by method.
func (c *Catalog) All() []model.Endpoint {
	return c.endpoints
}

// MethodsFor returns the set of methods declared at any endpoint whose
// template matches concretePath.
func (c *Catalog) MethodsFor(concretePath string) map[string]struct{} {
	methods := map[string]struct{}{}
	for _, ep := range c.endpoints {
		if pattern.TemplateMatches(ep.PathPattern, concretePath) {
			methods[ep.Method] = struct{}{}
		}
	}
	return methods
}

// Matches returns the endpoint whose template matches concretePath and
// whose method equals method, if any.
func (c *Catalog) Matches(concretePath, method string) (model.Endpoint, bool) {
	method = strings.ToUpper(method)
	for _, ep := range c.endpoints {
		if ep.Method == method && pattern.TemplateMatches(ep.PathPattern, concretePath) {
			return ep, true
		}
	}
	return model.Endpoint{}, false
}
