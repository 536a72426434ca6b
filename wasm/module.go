package wasm

import (
	"fmt"
)

// Index is an index into one of the module's index spaces, e.g. the type of a
// defined function is TypeSection[FunctionSection[i]].
//
// See https://www.w3.org/TR/wasm-core-1/#binary-index
type Index = uint32

// FunctionIndex identifies a function in the module's function index space,
// which begins with imported functions and ends with those defined in this
// module.
//
// See https://www.w3.org/TR/wasm-core-1/#syntax-funcidx
type FunctionIndex uint32

// DefinedFunctionIndex identifies a function whose body is defined in this
// module, so excludes imports. It indexes FunctionSection as well as the
// parallel body, compiled-code and relocation sequences derived from it.
type DefinedFunctionIndex uint32

// Module is the compiler's view of a decoded WebAssembly binary: only the
// sections that establish the function index space and signatures. Decoding
// the binary format is owned by an earlier phase; this descriptor is
// read-only here.
//
// See https://www.w3.org/TR/wasm-core-1/#modules%E2%91%A8
type Module struct {
	// TypeSection contains the unique FunctionType of functions imported or
	// defined in this module.
	TypeSection []*FunctionType

	// ImportSection contains the module's imports. Function imports occupy
	// the beginning of the function index space in order of appearance.
	ImportSection []*Import

	// FunctionSection contains the index in TypeSection of each function
	// defined in this module.
	//
	// Note: FunctionSection is index correlated with the code section. Given
	// the same position, ex. 2, a function type is at
	// TypeSection[FunctionSection[2]], while its body is the third input to
	// compiler.CompileModule.
	FunctionSection []Index
}

// Import is the compiler's view of an import description.
//
// See https://www.w3.org/TR/wasm-core-1/#import-section%E2%91%A0
type Import struct {
	// Module is the name of the module to import from.
	Module string
	// Name is the name of the imported field.
	Name string
	// Type is the kind of the import, e.g. ExternTypeFunc.
	Type ExternType
	// DescFunc is the index in TypeSection when Type == ExternTypeFunc.
	DescFunc Index
}

// ImportedFunctionCount returns how many functions are imported, which is
// also where the defined-function region of the function index space begins.
func (m *Module) ImportedFunctionCount() uint32 {
	var count uint32
	for _, im := range m.ImportSection {
		if im.Type == ExternTypeFunc {
			count++
		}
	}
	return count
}

// FunctionIndex returns the position of the given defined function in the
// module's function index space.
func (m *Module) FunctionIndex(d DefinedFunctionIndex) FunctionIndex {
	return FunctionIndex(m.ImportedFunctionCount() + uint32(d))
}

// DefinedIndex returns the DefinedFunctionIndex of fi, or ok=false when fi
// names an imported function.
func (m *Module) DefinedIndex(fi FunctionIndex) (d DefinedFunctionIndex, ok bool) {
	imported := m.ImportedFunctionCount()
	if uint32(fi) < imported {
		return 0, false
	}
	return DefinedFunctionIndex(uint32(fi) - imported), true
}

// FunctionSignature returns the type of the function at fi, whether imported
// or defined, or an error if fi or its type index is out of range.
func (m *Module) FunctionSignature(fi FunctionIndex) (*FunctionType, error) {
	typeIdx, err := m.functionTypeIndex(fi)
	if err != nil {
		return nil, err
	}
	if int(typeIdx) >= len(m.TypeSection) {
		return nil, fmt.Errorf("function index %d has unknown type index %d", fi, typeIdx)
	}
	return m.TypeSection[typeIdx], nil
}

func (m *Module) functionTypeIndex(fi FunctionIndex) (Index, error) {
	imported := m.ImportedFunctionCount()
	if uint32(fi) < imported {
		var n uint32
		for _, im := range m.ImportSection {
			if im.Type != ExternTypeFunc {
				continue
			}
			if n == uint32(fi) {
				return im.DescFunc, nil
			}
			n++
		}
		// Unreachable as fi < imported implies a matching import exists.
		return 0, fmt.Errorf("function index %d out of range", fi)
	}
	d := uint32(fi) - imported
	if int(d) >= len(m.FunctionSection) {
		return 0, fmt.Errorf("function index %d out of range", fi)
	}
	return m.FunctionSection[d], nil
}

// FunctionCount returns the size of the function index space: imported
// functions followed by defined ones.
func (m *Module) FunctionCount() uint32 {
	return m.ImportedFunctionCount() + uint32(len(m.FunctionSection))
}

// FunctionType describes the parameter and result types of a function.
//
// See https://www.w3.org/TR/wasm-core-1/#function-types%E2%91%A4
type FunctionType struct {
	Params, Results []ValueType
}

func (t *FunctionType) String() (ret string) {
	for _, b := range t.Params {
		ret += ValueTypeName(b)
	}
	if len(t.Params) == 0 {
		ret += "null"
	}
	ret += "_"
	for _, b := range t.Results {
		ret += ValueTypeName(b)
	}
	if len(t.Results) == 0 {
		ret += "null"
	}
	return
}

// ValueType is the binary encoding of a type such as i32.
// See https://www.w3.org/TR/wasm-core-1/#binary-valtype
//
// Note: This is a type alias as it is easier to encode and decode in the binary format.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
// Note that ValueTypeName returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/wasm-core-1/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the canonical name of the externtype.
// https://www.w3.org/TR/wasm-core-1/#syntax-externtype
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return "unknown"
}
