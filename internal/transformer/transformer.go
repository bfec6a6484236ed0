// Package transformer holds post-enrichment steps applied to contacts before
// they are written.
package transformer

import "schoolcontacts/internal/contacts"

// Transform rewrites a batch of contacts. Implementations may mutate in
// place and return the same slice.
type Transform interface {
	Apply(in []contacts.Contact) []contacts.Contact
}

// Chain applies transforms in order.
type Chain []Transform

// Apply implements Transform.
func (c Chain) Apply(in []contacts.Contact) []contacts.Contact {
	for _, t := range c {
		if t == nil {
			continue
		}
		in = t.Apply(in)
	}
	return in
}
