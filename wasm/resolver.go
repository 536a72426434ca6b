package wasm

// Export describes one importable item (function, table, memory or global)
// offered by an instance. The concrete representation is owned by the
// runtime that instantiated the module; this core only forwards it to the
// linker, which validates the kind against the import it satisfies.
type Export interface {
	// ExternType returns the kind of the exported item.
	ExternType() ExternType
}

// Instance is a live, running copy of a module. Instances are created and
// owned by the instantiation phase; a Namespace holds a non-owning reference
// sufficient to perform field lookups.
type Instance interface {
	// Lookup returns the export named field, or nil if the instance has no
	// such export. Absence is a normal outcome, not an error: unresolved
	// imports are diagnosed by the linker.
	Lookup(field string) Export
}

// Resolver resolves an import's (module name, field name) pair to an export
// of an already-instantiated module, or nil when it cannot.
//
// Resolution happens at link time, by name, so instances may reference each
// other cyclically without any Resolver detecting it: cycle validity is the
// linker's concern.
type Resolver interface {
	Resolve(name, field string) Export
}

// ResolverChain composes resolvers, trying each in order and returning the
// first non-nil export. It satisfies Resolver itself, so chains nest.
type ResolverChain []Resolver

// Resolve implements Resolver.Resolve.
func (c ResolverChain) Resolve(name, field string) Export {
	for _, r := range c {
		if exp := r.Resolve(name, field); exp != nil {
			return exp
		}
	}
	return nil
}
