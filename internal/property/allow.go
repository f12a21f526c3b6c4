package property

import (
	"context"
	"errors"
	"sort"
	"strings"

	"apiconform/internal/model"
)

var errNoCatalog = errors.New("OPTIONS Allow Header property requires a catalog lookup")

// OptionsAllowProperty checks that an OPTIONS response's Allow header
// matches exactly the set of methods the catalog declares at this path,
// plus OPTIONS itself.
type OptionsAllowProperty struct {
	catalog CatalogLookup
}

// NewOptionsAllowProperty builds the property. catalog may also be
// supplied per-call via Collaborators.Catalog; a constructor-supplied
// catalog is used when Collaborators.Catalog is nil.
func NewOptionsAllowProperty(catalog CatalogLookup) *OptionsAllowProperty {
	return &OptionsAllowProperty{catalog: catalog}
}

func (p *OptionsAllowProperty) Name() string         { return "OPTIONS Allow Header" }
func (p *OptionsAllowProperty) RFCReference() string { return "RFC 7231 §4.3.7" }
func (p *OptionsAllowProperty) Description() string {
	return "An OPTIONS response's Allow header must list exactly the catalog's declared methods plus OPTIONS."
}

func (p *OptionsAllowProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if req.Method != "OPTIONS" {
		return skip()
	}
	catalog := collab.Catalog
	if catalog == nil {
		catalog = p.catalog
	}
	if catalog == nil {
		return errResult(p.Name(), errNoCatalog)
	}

	declared := catalog.MethodsFor(pathOnly(req.Path))
	required := map[string]struct{}{"OPTIONS": {}}
	for m := range declared {
		required[strings.ToUpper(m)] = struct{}{}
	}

	values := resp.HeaderValues("Allow")
	if len(values) == 0 {
		return model.Fail("missing Allow header", "")
	}
	actual := parseAllow(strings.Join(values, ","))

	if diff := setDiff(required, actual); diff != "" {
		return model.Fail("Allow header does not match declared methods", diff)
	}
	return model.Pass()
}

// NotAllowedProperty checks that a 405 response always carries an Allow
// header; its content is not compared, only its presence.
type NotAllowedProperty struct{}

// NewNotAllowedProperty builds the property.
func NewNotAllowedProperty() *NotAllowedProperty { return &NotAllowedProperty{} }

func (p *NotAllowedProperty) Name() string         { return "405 Method Not Allowed Allow Header" }
func (p *NotAllowedProperty) RFCReference() string { return "§6.5.5" }
func (p *NotAllowedProperty) Description() string {
	return "A 405 response must carry an Allow header; its contents are not otherwise checked."
}

func (p *NotAllowedProperty) Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult {
	if resp.StatusCode != 405 {
		return skip()
	}
	if len(resp.HeaderValues("Allow")) == 0 {
		return model.Fail("missing Allow header", "")
	}
	return model.Pass()
}

// parseAllow parses a comma-separated, whitespace-tolerant, case-insensitive
// method list (spec.md §8 property #7).
func parseAllow(raw string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		m := strings.ToUpper(strings.TrimSpace(part))
		if m != "" {
			out[m] = struct{}{}
		}
	}
	return out
}

func setDiff(required, actual map[string]struct{}) string {
	var missing, extra []string
	for m := range required {
		if _, ok := actual[m]; !ok {
			missing = append(missing, m)
		}
	}
	for m := range actual {
		if _, ok := required[m]; !ok {
			extra = append(extra, m)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	if len(missing) == 0 && len(extra) == 0 {
		return ""
	}
	var b strings.Builder
	if len(missing) > 0 {
		b.WriteString("missing: " + strings.Join(missing, ",") + " ")
	}
	if len(extra) > 0 {
		b.WriteString("unexpected: " + strings.Join(extra, ","))
	}
	return strings.TrimSpace(b.String())
}

func pathOnly(path string) string {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		return path[:idx]
	}
	return path
}
