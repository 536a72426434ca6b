package compiler

import (
	"bytes"
)

// CodeOffset addresses a byte within one function's code buffer.
type CodeOffset = uint32

// Addend is the constant added to a relocation's resolved address.
type Addend = int64

// RelocationKind is the architecture-specific way to rewrite a patch site.
type RelocationKind byte

const (
	// RelocationKindAbs32 patches an absolute 32-bit address.
	RelocationKindAbs32 RelocationKind = iota
	// RelocationKindAbs64 patches an absolute 64-bit address.
	RelocationKindAbs64
	// RelocationKindPCRel32 patches a 32-bit offset relative to the end of
	// the patched field.
	RelocationKindPCRel32
)

func (k RelocationKind) String() string {
	switch k {
	case RelocationKindAbs32:
		return "Abs32"
	case RelocationKindAbs64:
		return "Abs64"
	case RelocationKindPCRel32:
		return "PCRel32"
	}
	return "unknown"
}

// JumpTableIndex identifies one jump table within a function.
type JumpTableIndex uint32

// RelocSink is the callback protocol a TargetISA uses to report patch sites
// while emitting one function. Callbacks arrive in emission order.
type RelocSink interface {
	// RelocExternal reports a patch site referring to an external symbol.
	RelocExternal(offset CodeOffset, kind RelocationKind, name ExternalName, addend Addend)
	// RelocLabel reports a patch site relative to a basic-block label of the
	// same function.
	RelocLabel(offset CodeOffset, kind RelocationKind, labelOffset CodeOffset)
	// RelocJumpTable reports a patch site referring to one of the function's
	// jump tables.
	RelocJumpTable(offset CodeOffset, kind RelocationKind, jt JumpTableIndex)
}

// TrapCode classifies an execution trap the emitted code can raise.
type TrapCode byte

const (
	TrapCodeUnreachable TrapCode = iota
	TrapCodeMemoryOutOfBounds
	TrapCodeIntegerDivisionByZero
	TrapCodeIntegerOverflow
)

func (c TrapCode) String() string {
	switch c {
	case TrapCodeUnreachable:
		return "unreachable"
	case TrapCodeMemoryOutOfBounds:
		return "memory_out_of_bounds"
	case TrapCodeIntegerDivisionByZero:
		return "integer_division_by_zero"
	case TrapCodeIntegerOverflow:
		return "integer_overflow"
	}
	return "unknown"
}

// TrapSink receives the code offsets at which emitted code can trap.
type TrapSink interface {
	Trap(offset CodeOffset, code TrapCode)
}

// NullTrapSink drops trap offsets. Trap metadata recording belongs to a
// later phase, so compilation here always uses this sink.
type NullTrapSink struct{}

// Trap implements TrapSink.Trap.
func (NullTrapSink) Trap(CodeOffset, TrapCode) {}

// TargetISA describes the target instruction-set architecture: it selects
// instructions and emits machine code for one Function at a time, reporting
// patch sites and trap offsets through the sinks.
type TargetISA interface {
	// Name returns the architecture name, e.g. "amd64".
	Name() string
	// CompileAndEmit appends fn's machine code to code. Patch sites are
	// reported to relocs and trap offsets to traps, both in emission order.
	CompileAndEmit(fn *Function, code *bytes.Buffer, relocs RelocSink, traps TrapSink) error
}

// Context is the function-scoped compilation state: one Function being
// lowered then emitted. A fresh Context is allocated per function and not
// reused across them.
type Context struct {
	Func Function
}

// NewContext returns an empty function compilation context.
func NewContext() *Context {
	return &Context{}
}

// CompileAndEmit runs the backend for the context's function.
func (c *Context) CompileAndEmit(isa TargetISA, code *bytes.Buffer, relocs RelocSink, traps TrapSink) error {
	return isa.CompileAndEmit(&c.Func, code, relocs, traps)
}
