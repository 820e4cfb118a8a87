package wallet

import "errors"

// ErrUnknownRoute is returned when a path has no configured price, i.e.
// it is not a payment-gated route.
var ErrUnknownRoute = errors.New("unknown route")

// Pricing maps a route path to its fixed price (decimal string).
// Prices are operator configuration, never derived from client input.
type Pricing map[string]string

// PriceFor returns the configured price for path.
func (p Pricing) PriceFor(path string) (string, error) {
	price, ok := p[path]
	if !ok {
		return "", ErrUnknownRoute
	}
	return price, nil
}

// Routes returns the set of gated paths, for logging at startup.
func (p Pricing) Routes() []string {
	out := make([]string, 0, len(p))
	for path := range p {
		out = append(out, path)
	}
	return out
}
