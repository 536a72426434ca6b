package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testExport struct {
	et ExternType
}

// ExternType implements Export.ExternType.
func (e testExport) ExternType() ExternType {
	return e.et
}

type testInstance struct {
	exports map[string]Export
}

// Lookup implements Instance.Lookup.
func (i *testInstance) Lookup(field string) Export {
	return i.exports[field]
}

func TestNamespace_NameInstance(t *testing.T) {
	ns := NewNamespace()
	first := &testInstance{}
	second := &testInstance{}

	t.Run("registers", func(t *testing.T) {
		ns.NameInstance("a", first)
		require.Equal(t, Instance(first), ns.GetInstance("a"))
	})

	t.Run("later registration wins", func(t *testing.T) {
		ns.NameInstance("a", second)
		require.Equal(t, Instance(second), ns.GetInstance("a"))
	})
}

func TestNamespace_GetInstance(t *testing.T) {
	ns := NewNamespace()
	require.Nil(t, ns.GetInstance("a"))
}

func TestNamespace_Resolve(t *testing.T) {
	exp := testExport{et: ExternTypeFunc}
	ns := NewNamespace()
	ns.NameInstance("a", &testInstance{exports: map[string]Export{"f": exp}})

	t.Run("found", func(t *testing.T) {
		require.Equal(t, Export(exp), ns.Resolve("a", "f"))
	})

	t.Run("unregistered module", func(t *testing.T) {
		require.Nil(t, ns.Resolve("b", "f"))
	})

	t.Run("missing field", func(t *testing.T) {
		require.Nil(t, ns.Resolve("a", "g"))
	})
}

func TestResolverChain_Resolve(t *testing.T) {
	expA := testExport{et: ExternTypeFunc}
	expB := testExport{et: ExternTypeMemory}

	front := NewNamespace()
	front.NameInstance("m", &testInstance{exports: map[string]Export{"f": expA}})
	back := NewNamespace()
	back.NameInstance("m", &testInstance{exports: map[string]Export{"f": expB, "g": expB}})

	chain := ResolverChain{front, back}

	t.Run("first match wins", func(t *testing.T) {
		require.Equal(t, Export(expA), chain.Resolve("m", "f"))
	})

	t.Run("falls through to later resolver", func(t *testing.T) {
		require.Equal(t, Export(expB), chain.Resolve("m", "g"))
	})

	t.Run("absent everywhere", func(t *testing.T) {
		require.Nil(t, chain.Resolve("m", "h"))
	})

	t.Run("empty chain", func(t *testing.T) {
		require.Nil(t, ResolverChain{}.Resolve("m", "f"))
	})
}
