// Package property holds the built-in HTTP RFC properties and the
// business-rule builder, grounded on the teacher's
// internal/testdata/generator/business_rules.go builder surface and
// generalized into a proper Property interface the engine can run
// uniformly.
package property

import (
	"context"
	"fmt"

	"apiconform/internal/model"
	"apiconform/internal/state"
)

// Property is a predicate over (Request, Response, collaborators).
type Property interface {
	Name() string
	RFCReference() string
	Description() string
	Check(ctx context.Context, req *model.Request, resp *model.Response, collab Collaborators) model.PropertyResult
}

// ServiceClient is the collaborator properties need to issue follow-up
// requests (idempotency's resend, HEAD/GET consistency's paired GET).
// Implemented by internal/httpclient.
type ServiceClient interface {
	Send(ctx context.Context, req *model.Request) (*model.Response, error)
}

// CatalogLookup is the collaborator OPTIONS Allow-header checking needs to
// know which methods the catalog declares at a path.
type CatalogLookup interface {
	MethodsFor(concretePath string) map[string]struct{}
}

// Collaborators bundles everything a Property may need beyond the request
// and response it is checking: the shared, read-only state source, the
// client for follow-up requests, and catalog lookup for Allow-header
// comparisons. Any field a given property doesn't need is simply unused.
type Collaborators struct {
	Source  state.Source
	Client  ServiceClient
	Catalog CatalogLookup
}

func skip() model.PropertyResult { return model.Skip("N/A") }

func is2xx(status int) bool { return status >= 200 && status < 300 }

func errResult(name string, err error) model.PropertyResult {
	return model.Fail(err.Error(), fmt.Sprintf("%s: %v", name, err))
}
