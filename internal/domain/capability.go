package domain

import "slices"

const (
	CapabilityRead   Capability = "read"
	CapabilityList   Capability = "list"
	CapabilityWrite  Capability = "write"
	CapabilitySearch Capability = "search"
	CapabilityMove   Capability = "move"
	CapabilityDelete Capability = "delete"
	CapabilityTools  Capability = "tools"
)

// Capability is a coarse tag describing an operation a server supports.
type Capability string

// DefaultCapabilities is the conservative set assumed when introspection fails
// or has not happened yet. Reading and listing are safe to attempt on any
// server; mutating operations are only advertised when discovered.
func DefaultCapabilities() []Capability {
	return []Capability{CapabilityRead, CapabilityList}
}

// Strings converts a capability set for display and API responses.
func Strings(caps []Capability) []string {
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return out
}

// Has reports whether the capability set contains c.
func Has(caps []Capability, c Capability) bool {
	return slices.Contains(caps, c)
}
