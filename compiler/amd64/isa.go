// Package amd64 implements compiler.TargetISA for x86-64.
//
// Machine code is built with the golang-asm library. Please refer to
// https://www.felixcloutier.com/x86/index.html if unfamiliar with amd64
// instructions used here. Note that the x86 pkg used here prefixes all the
// instructions with "A", e.g. MOVQ will be given as x86.AMOVQ.
package amd64

import (
	"bytes"
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/aotlink/aotlink/compiler"
	"github.com/aotlink/aotlink/wasm"
)

// NewISA returns the x86-64 target.
func NewISA() compiler.TargetISA {
	return isa{}
}

type isa struct{}

// Name implements compiler.TargetISA.Name.
func (isa) Name() string {
	return "amd64"
}

const (
	// callTargetPlaceholder occupies a call target until the linker patches
	// it. The value exceeds 32 bits so the assembler must choose the 10-byte
	// MOVQ encoding (REX.W + B8 + imm64), keeping the patched field at a
	// fixed position within the instruction.
	callTargetPlaceholder int64 = 0x7fffffffffffffff
	// callImmediateOffset is where the imm64 field sits relative to the
	// start of that MOVQ encoding.
	callImmediateOffset = 2
)

// CompileAndEmit implements compiler.TargetISA.CompileAndEmit.
//
// Every call-shaped operation is emitted as
//
//	MOVQ $callTargetPlaceholder, AX
//	CALL AX
//
// and reported to relocs as an Abs64 patch site at the MOVQ immediate, in
// emission order. Identical input always assembles to identical bytes and
// an identical callback sequence.
func (isa) CompileAndEmit(fn *compiler.Function, code *bytes.Buffer, relocs compiler.RelocSink, traps compiler.TrapSink) error {
	b, err := goasm.NewBuilder("amd64", 1024)
	if err != nil {
		return fmt.Errorf("failed to create assembly builder: %w", err)
	}

	a := &assembler{builder: b}
	a.emitPreamble()
	for _, op := range fn.Ops {
		switch o := op.(type) {
		case compiler.OpI32Const:
			a.emitI32Const(o.Value)
		case compiler.OpI64Const:
			a.emitI64Const(o.Value)
		case compiler.OpCall:
			a.emitSymbolCall(compiler.FuncName(o.Func))
		case compiler.OpMemoryGrow:
			a.emitSymbolCall(compiler.MemoryGrowName())
		case compiler.OpMemorySize:
			a.emitSymbolCall(compiler.MemorySizeName())
		case compiler.OpFloatRound:
			lc, err := roundLibCall(o)
			if err != nil {
				return err
			}
			a.emitSymbolCall(compiler.LibCallName{Call: lc})
		case compiler.OpDrop:
			// Values live on the runtime stack; discarding needs no code here.
		case compiler.OpUnreachable:
			a.emitUnreachable()
		default:
			return fmt.Errorf("unsupported operation %T", op)
		}
	}
	a.emitEpilogue()

	out := a.builder.Assemble()
	if _, err := code.Write(out); err != nil {
		return err
	}

	// The assembler fixes instruction offsets only at Assemble, so the
	// callbacks fire now, still in emission order.
	for _, cs := range a.callSites {
		relocs.RelocExternal(compiler.CodeOffset(cs.mov.Pc)+callImmediateOffset,
			compiler.RelocationKindAbs64, cs.name, 0)
	}
	for _, ts := range a.trapSites {
		traps.Trap(compiler.CodeOffset(ts.prog.Pc), ts.code)
	}
	return nil
}

// roundLibCall maps a float rounding operation to its runtime library
// routine. amd64 without SSE4.1 has no ROUNDSS/ROUNDSD, so rounding is
// always a libcall on this target.
func roundLibCall(o compiler.OpFloatRound) (compiler.LibCall, error) {
	f32 := o.Type == wasm.ValueTypeF32
	if !f32 && o.Type != wasm.ValueTypeF64 {
		return 0, fmt.Errorf("invalid float rounding type %s", wasm.ValueTypeName(o.Type))
	}
	switch o.Kind {
	case compiler.RoundCeil:
		if f32 {
			return compiler.LibCallCeilF32, nil
		}
		return compiler.LibCallCeilF64, nil
	case compiler.RoundFloor:
		if f32 {
			return compiler.LibCallFloorF32, nil
		}
		return compiler.LibCallFloorF64, nil
	case compiler.RoundTrunc:
		if f32 {
			return compiler.LibCallTruncF32, nil
		}
		return compiler.LibCallTruncF64, nil
	case compiler.RoundNearest:
		if f32 {
			return compiler.LibCallNearestF32, nil
		}
		return compiler.LibCallNearestF64, nil
	}
	return 0, fmt.Errorf("invalid float rounding kind %d", o.Kind)
}

type callSite struct {
	// mov is the MOVQ holding the placeholder; its Pc is resolved at Assemble.
	mov  *obj.Prog
	name compiler.ExternalName
}

type trapSite struct {
	prog *obj.Prog
	code compiler.TrapCode
}

type assembler struct {
	builder   *goasm.Builder
	callSites []callSite
	trapSites []trapSite
}

func (a *assembler) newProg() *obj.Prog {
	return a.builder.NewProg()
}

func (a *assembler) addInstruction(prog *obj.Prog) {
	a.builder.AddInstruction(prog)
}

func (a *assembler) emitPreamble() {
	push := a.newProg()
	push.As = x86.APUSHQ
	push.From.Type = obj.TYPE_REG
	push.From.Reg = x86.REG_BP
	a.addInstruction(push)

	mov := a.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_REG
	mov.From.Reg = x86.REG_SP
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_BP
	a.addInstruction(mov)
}

func (a *assembler) emitEpilogue() {
	pop := a.newProg()
	pop.As = x86.APOPQ
	pop.To.Type = obj.TYPE_REG
	pop.To.Reg = x86.REG_BP
	a.addInstruction(pop)

	ret := a.newProg()
	ret.As = obj.ARET
	a.addInstruction(ret)
}

func (a *assembler) emitI32Const(v int32) {
	mov := a.newProg()
	mov.As = x86.AMOVL
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = int64(v)
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	a.addInstruction(mov)
}

func (a *assembler) emitI64Const(v int64) {
	mov := a.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = v
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	a.addInstruction(mov)
}

func (a *assembler) emitSymbolCall(name compiler.ExternalName) {
	mov := a.newProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_CONST
	mov.From.Offset = callTargetPlaceholder
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_AX
	a.addInstruction(mov)
	a.callSites = append(a.callSites, callSite{mov: mov, name: name})

	call := a.newProg()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_AX
	a.addInstruction(call)
}

func (a *assembler) emitUnreachable() {
	ud2 := a.newProg()
	ud2.As = x86.AUD2
	a.addInstruction(ud2)
	a.trapSites = append(a.trapSites, trapSite{prog: ud2, code: compiler.TrapCodeUnreachable})
}
