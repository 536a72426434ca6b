package compiler

import (
	"github.com/aotlink/aotlink/wasm"
)

// userFunctionNamespace is the single namespace tag this system assigns to
// user function symbols. The relocation classifier asserts it.
const userFunctionNamespace uint32 = 0

// FuncName returns the symbolic name for the function at fi. It depends only
// on fi, so a caller can reference a function of a not-yet-compiled module.
func FuncName(fi wasm.FunctionIndex) ExternalName {
	return UserFuncName{Namespace: userFunctionNamespace, Index: uint32(fi)}
}

// MemoryGrowName returns the name of the intrinsic that grows the default
// linear memory by a number of pages.
func MemoryGrowName() ExternalName {
	return SymbolName{Name: "memory_grow"}
}

// MemorySizeName returns the name of the intrinsic that queries the current
// size of the default linear memory.
func MemorySizeName() ExternalName {
	return SymbolName{Name: "memory_size"}
}
