// Package compiler turns a decoded module's function bodies into native
// machine code and records every place in that code where a symbolic
// reference must later be patched with a real address. It never resolves a
// relocation itself: resolving and patching belong to the linking phase,
// which consumes the Compilation and Relocations produced here.
package compiler

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/aotlink/aotlink/wasm"
	"github.com/aotlink/aotlink/wasm/buildoptions"
)

// Compilation is the result of compiling a module's functions: one machine
// code buffer per defined function, indexed by DefinedFunctionIndex. The
// buffers are owned by the Compilation and immutable once produced.
type Compilation struct {
	// Functions holds compiled machine code for the function bodies.
	Functions [][]byte
}

// NewCompilation allocates the compilation result with the given function
// bodies.
func NewCompilation(functions [][]byte) *Compilation {
	return &Compilation{Functions: functions}
}

// Relocation is a record of one patch to perform: at Offset within the
// owning function's code buffer, rewrite per Kind with the resolved address
// of Target plus Addend.
type Relocation struct {
	// Offset is where in the owning function's code buffer to apply the patch.
	Offset CodeOffset
	// Kind is the architecture-specific patch kind.
	Kind RelocationKind
	// Target is what the patched address must refer to.
	Target RelocationTarget
	// Addend is added to the resolved address.
	Addend Addend
}

// RelocationTarget is the classified link-time meaning of a patch site.
// Closed set: consumers switch over the concrete types with no default arm.
type RelocationTarget interface {
	relocationTarget()
}

// InternalFunctionTarget refers to a user function of the module by its
// position in the function index space.
type InternalFunctionTarget struct {
	Index wasm.FunctionIndex
}

// LibraryCallTarget refers to a backend runtime library routine.
type LibraryCallTarget struct {
	Call LibCall
}

// MemoryGrowTarget refers to the intrinsic growing the default linear memory
// by a requested number of pages.
type MemoryGrowTarget struct{}

// MemorySizeTarget refers to the intrinsic querying the current size of the
// default linear memory.
type MemorySizeTarget struct{}

func (InternalFunctionTarget) relocationTarget() {}
func (LibraryCallTarget) relocationTarget()      {}
func (MemoryGrowTarget) relocationTarget()       {}
func (MemorySizeTarget) relocationTarget()       {}

// Relocations holds the relocation list of each defined function, index
// aligned with Compilation.Functions.
type Relocations [][]Relocation

// relocSink implements RelocSink for exactly one function's emission pass,
// classifying each external-symbol callback and accumulating the records in
// emission order.
type relocSink struct {
	// funcRelocs are the relocations recorded for the function.
	funcRelocs []Relocation
}

func newRelocSink() *relocSink {
	return &relocSink{}
}

// RelocExternal implements RelocSink.RelocExternal.
//
// The sentinel checks run before the shape-based rules on purpose: a
// sentinel must classify as its intrinsic even if its name could ever
// structurally resemble a user symbol.
func (r *relocSink) RelocExternal(offset CodeOffset, kind RelocationKind, name ExternalName, addend Addend) {
	var target RelocationTarget
	switch {
	case name == MemoryGrowName():
		target = MemoryGrowTarget{}
	case name == MemorySizeName():
		target = MemorySizeTarget{}
	default:
		switch n := name.(type) {
		case UserFuncName:
			if n.Namespace != userFunctionNamespace {
				panic(fmt.Sprintf("user symbol %s in unexpected namespace %d", n, n.Namespace))
			}
			target = InternalFunctionTarget{Index: wasm.FunctionIndex(n.Index)}
		case LibCallName:
			target = LibraryCallTarget{Call: n.Call}
		default:
			// The backend emitted a reference we have no classification rule
			// for. Dropping it would corrupt the address patching downstream,
			// so this must stop the process.
			panic(fmt.Sprintf("unrecognized external name %s", name))
		}
	}
	r.funcRelocs = append(r.funcRelocs, Relocation{
		Offset: offset,
		Kind:   kind,
		Target: target,
		Addend: addend,
	})
}

// RelocLabel implements RelocSink.RelocLabel.
func (r *relocSink) RelocLabel(offset CodeOffset, kind RelocationKind, labelOffset CodeOffset) {
	panic("label relocations not yet implemented")
}

// RelocJumpTable implements RelocSink.RelocJumpTable.
func (r *relocSink) RelocJumpTable(offset CodeOffset, kind RelocationKind, jt JumpTableIndex) {
	panic("jump table relocations not yet implemented")
}

// FuncEnvironment supplies module-wide meaning to the translation of one
// function body. A fresh environment is allocated per function and released
// when that function's compile returns.
type FuncEnvironment struct {
	ISA    TargetISA
	Module *wasm.Module
}

// NewFuncEnvironment returns a translation environment for one function of
// module targeting isa.
func NewFuncEnvironment(isa TargetISA, module *wasm.Module) *FuncEnvironment {
	return &FuncEnvironment{ISA: isa, Module: module}
}

// Translator lowers one raw function body into a backend Function, or fails
// with a translation error when the body is malformed or exercises an
// unsupported construct.
type Translator interface {
	Translate(body []byte, fn *Function, env *FuncEnvironment) error
}

// CompilePhase names the compile phase that failed.
type CompilePhase byte

const (
	// PhaseTranslation is the lowering of a raw body into the backend form.
	PhaseTranslation CompilePhase = iota
	// PhaseCodegen is instruction selection and machine code emission.
	PhaseCodegen
)

func (p CompilePhase) String() string {
	switch p {
	case PhaseTranslation:
		return "translation"
	case PhaseCodegen:
		return "codegen"
	}
	return "unknown"
}

// CompileError is the failure of one function's compile, which aborts the
// entire module compilation: a single malformed function invalidates the
// module, so there is never a partial result.
type CompileError struct {
	// Phase is which compile phase failed.
	Phase CompilePhase
	// Index is the defined function whose compile failed.
	Index wasm.DefinedFunctionIndex
	// Err is the underlying translation or codegen error.
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s failed for function[%d]: %v", e.Phase, e.Index, e.Err)
}

// Unwrap returns the underlying translation or codegen error.
func (e *CompileError) Unwrap() error {
	return e.Err
}

// CompileModule compiles every function body defined in module, in
// DefinedFunctionIndex order, producing the compiled code and the
// relocations to apply to it. functionBodyInputs is the raw body of each
// defined function, index aligned with module.FunctionSection; a length
// mismatch is a caller bug and panics.
//
// On the first translation or codegen failure the error is returned
// immediately and no output is produced, including for functions that had
// already compiled. On success the returned Compilation and Relocations are
// congruent in length and order with functionBodyInputs.
func CompileModule(module *wasm.Module, functionBodyInputs [][]byte, isa TargetISA, translator Translator) (*Compilation, Relocations, error) {
	if len(functionBodyInputs) != len(module.FunctionSection) {
		panic(fmt.Sprintf("compiler: %d function bodies for %d defined functions",
			len(functionBodyInputs), len(module.FunctionSection)))
	}

	functions := make([][]byte, 0, len(functionBodyInputs))
	relocations := make(Relocations, 0, len(functionBodyInputs))
	for i, input := range functionBodyInputs {
		d := wasm.DefinedFunctionIndex(i)
		fi := module.FunctionIndex(d)
		sig, err := module.FunctionSignature(fi)
		if err != nil {
			// The descriptor was validated by the decoding phase; an
			// inconsistent one here is a caller bug.
			panic(fmt.Sprintf("compiler: %v", err))
		}

		ctx := NewContext()
		ctx.Func.Name = FuncName(fi)
		ctx.Func.Signature = sig

		env := NewFuncEnvironment(isa, module)
		if err := translator.Translate(input, &ctx.Func, env); err != nil {
			return nil, nil, &CompileError{Phase: PhaseTranslation, Index: d, Err: err}
		}

		var code bytes.Buffer
		sink := newRelocSink()
		var traps NullTrapSink
		if err := ctx.CompileAndEmit(isa, &code, sink, traps); err != nil {
			return nil, nil, &CompileError{Phase: PhaseCodegen, Index: d, Err: err}
		}

		if buildoptions.IsDebugMode {
			fmt.Printf("compiled function[%d] in hex: %s\n", d, hex.EncodeToString(code.Bytes()))
		}

		functions = append(functions, code.Bytes())
		relocations = append(relocations, sink.funcRelocs)
	}

	return NewCompilation(functions), relocations, nil
}
