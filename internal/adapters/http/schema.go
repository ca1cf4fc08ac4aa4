// SPDX-License-Identifier: AGPL-3.0-or-later

package http

import (
	"context"
	"net/url"

	"github.com/btouchard/keygate/internal/domain"
)

// Param declares one query parameter of an endpoint.
// An empty value counts as absent.
type Param struct {
	Name     string
	Required bool
	// Normalize rewrites and validates a present value. It returns a
	// *domain.ValidationError when the value is malformed.
	Normalize func(param, raw string) (string, error)
}

// Values holds the bound parameters of a request.
type Values map[string]string

// Get returns the bound value of name, or "" when it was absent.
func (v Values) Get(name string) string {
	return v[name]
}

type rateClass int

const (
	rateNone rateClass = iota
	rateCrypto
	rateGenerate
)

// Endpoint is one GET route: its parameter schema and the operation that
// produces the success payload.
type Endpoint struct {
	Path   string
	Params []Param
	Handle func(ctx context.Context, params Values) (any, error)

	class rateClass
}

// bind evaluates the schema against the query string in declaration order and
// stops at the first violation.
func (e Endpoint) bind(query url.Values) (Values, error) {
	values := make(Values, len(e.Params))
	for _, p := range e.Params {
		raw := query.Get(p.Name)
		if raw == "" {
			if p.Required {
				return nil, domain.Missing(p.Name)
			}
			continue
		}
		if p.Normalize != nil {
			normalized, err := p.Normalize(p.Name, raw)
			if err != nil {
				return nil, err
			}
			raw = normalized
		}
		values[p.Name] = raw
	}
	return values, nil
}

func required(name string) Param {
	return Param{Name: name, Required: true}
}
