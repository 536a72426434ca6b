package compiler

import (
	"fmt"

	"github.com/aotlink/aotlink/wasm"
)

// ExternalName is a symbolic reference the backend emits in place of an
// address it cannot know at emission time. The set of shapes is closed:
// consumers switch over the concrete types with no default arm, so a new
// shape is a compile-break, not a silent fallthrough.
type ExternalName interface {
	fmt.Stringer
	externalName()
}

// UserFuncName names a function of this system by its position in a module's
// function index space. Namespace is always userFunctionNamespace; any other
// value reaching the relocation classifier is a bug in the producer.
type UserFuncName struct {
	Namespace, Index uint32
}

func (UserFuncName) externalName() {}

func (n UserFuncName) String() string {
	return fmt.Sprintf("u%d:%d", n.Namespace, n.Index)
}

// SymbolName names a well-known runtime symbol, e.g. the linear-memory grow
// intrinsic. Values are comparable so sentinel checks are bit-for-bit.
type SymbolName struct {
	Name string
}

func (SymbolName) externalName() {}

func (n SymbolName) String() string {
	return "%" + n.Name
}

// LibCallName names a backend runtime library routine.
type LibCallName struct {
	Call LibCall
}

func (LibCallName) externalName() {}

func (n LibCallName) String() string {
	return n.Call.String()
}

// LibCall enumerates the runtime library routines the backend may call for
// operations it does not open-code, e.g. float rounding without the matching
// ISA extension.
type LibCall byte

const (
	LibCallCeilF32 LibCall = iota
	LibCallCeilF64
	LibCallFloorF32
	LibCallFloorF64
	LibCallTruncF32
	LibCallTruncF64
	LibCallNearestF32
	LibCallNearestF64
)

func (l LibCall) String() string {
	switch l {
	case LibCallCeilF32:
		return "CeilF32"
	case LibCallCeilF64:
		return "CeilF64"
	case LibCallFloorF32:
		return "FloorF32"
	case LibCallFloorF64:
		return "FloorF64"
	case LibCallTruncF32:
		return "TruncF32"
	case LibCallTruncF64:
		return "TruncF64"
	case LibCallNearestF32:
		return "NearestF32"
	case LibCallNearestF64:
		return "NearestF64"
	}
	return "unknown"
}

// Function is the unit handed to a TargetISA: the symbolic name callers use
// to reach it, its declared signature, and the lowered operation sequence.
type Function struct {
	// Name is derived deterministically from the function's position in the
	// module's function index space, which is what lets other functions call
	// it before any address is known.
	Name ExternalName
	// Signature is the declared type of the function.
	Signature *wasm.FunctionType
	// Ops is the operation sequence produced by translation.
	Ops []Op
}

// Op is one operation of the backend's input form. Closed set; the backend
// switches over the concrete types.
type Op interface {
	op()
}

// OpI32Const places a 32-bit integer constant.
type OpI32Const struct{ Value int32 }

// OpI64Const places a 64-bit integer constant.
type OpI64Const struct{ Value int64 }

// OpCall calls another function of the module by its index in the function
// index space. The backend emits a symbolic reference, never an address.
type OpCall struct{ Func wasm.FunctionIndex }

// OpMemoryGrow grows the default linear memory, lowered to a call to the
// grow intrinsic.
type OpMemoryGrow struct{}

// OpMemorySize queries the size of the default linear memory, lowered to a
// call to the size intrinsic.
type OpMemorySize struct{}

// RoundKind selects a float rounding mode for OpFloatRound.
type RoundKind byte

const (
	RoundCeil RoundKind = iota
	RoundFloor
	RoundTrunc
	RoundNearest
)

// OpFloatRound rounds a float; Type is ValueTypeF32 or ValueTypeF64. On
// targets without a native rounding instruction this lowers to a LibCall.
type OpFloatRound struct {
	Kind RoundKind
	Type wasm.ValueType
}

// OpDrop discards the top of the operand stack.
type OpDrop struct{}

// OpUnreachable traps unconditionally.
type OpUnreachable struct{}

func (OpI32Const) op()   {}
func (OpI64Const) op()   {}
func (OpCall) op()       {}
func (OpMemoryGrow) op() {}
func (OpMemorySize) op() {}
func (OpFloatRound) op() {}
func (OpDrop) op()       {}
func (OpUnreachable) op() {}
