package wasm

// The WebAssembly core specification does not say how imports are resolved
// to exports. Namespace provides one way: a registry of instances keyed by
// name, letting multiple loaded modules resolve each other's imports.
//
// Note that Namespace implements Resolver, so it can be consumed anywhere a
// Resolver is, including inside a ResolverChain ahead of or behind other
// resolver implementations such as a host-function resolver.
type Namespace struct {
	// names maps an instance name to the instance registered under it.
	names map[string]Instance
}

// NewNamespace returns an empty Namespace.
func NewNamespace() *Namespace {
	return &Namespace{names: map[string]Instance{}}
}

// NameInstance registers instance under name. A later registration under the
// same name silently replaces the earlier one: uniqueness is not enforced.
func (ns *Namespace) NameInstance(name string, instance Instance) {
	ns.names[name] = instance
}

// GetInstance returns the instance registered under name, or nil if none is.
// This is for callers that operate on an instance as a whole, e.g. to call
// one of its functions, rather than resolve a single import.
func (ns *Namespace) GetInstance(name string) Instance {
	return ns.names[name]
}

// Resolve implements Resolver.Resolve. A nil result means either no instance
// is registered under name, or the instance lacks the field; neither is an
// error here.
func (ns *Namespace) Resolve(name, field string) Export {
	instance, ok := ns.names[name]
	if !ok {
		return nil
	}
	return instance.Lookup(field)
}
