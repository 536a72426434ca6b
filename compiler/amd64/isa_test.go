package amd64

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aotlink/aotlink/compiler"
	"github.com/aotlink/aotlink/wasm"
)

type recordedReloc struct {
	offset compiler.CodeOffset
	kind   compiler.RelocationKind
	name   compiler.ExternalName
	addend compiler.Addend
}

type recordingRelocSink struct {
	relocs []recordedReloc
}

func (r *recordingRelocSink) RelocExternal(offset compiler.CodeOffset, kind compiler.RelocationKind, name compiler.ExternalName, addend compiler.Addend) {
	r.relocs = append(r.relocs, recordedReloc{offset, kind, name, addend})
}

func (r *recordingRelocSink) RelocLabel(compiler.CodeOffset, compiler.RelocationKind, compiler.CodeOffset) {
	panic("unexpected label relocation")
}

func (r *recordingRelocSink) RelocJumpTable(compiler.CodeOffset, compiler.RelocationKind, compiler.JumpTableIndex) {
	panic("unexpected jump table relocation")
}

type recordedTrap struct {
	offset compiler.CodeOffset
	code   compiler.TrapCode
}

type recordingTrapSink struct {
	traps []recordedTrap
}

func (t *recordingTrapSink) Trap(offset compiler.CodeOffset, code compiler.TrapCode) {
	t.traps = append(t.traps, recordedTrap{offset, code})
}

func emit(t *testing.T, fn *compiler.Function) ([]byte, *recordingRelocSink, *recordingTrapSink) {
	var code bytes.Buffer
	relocs := &recordingRelocSink{}
	traps := &recordingTrapSink{}
	require.NoError(t, NewISA().CompileAndEmit(fn, &code, relocs, traps))
	return code.Bytes(), relocs, traps
}

func TestCompileAndEmit_callSites(t *testing.T) {
	fn := &compiler.Function{
		Name: compiler.FuncName(0),
		Ops: []compiler.Op{
			compiler.OpCall{Func: 5},
			compiler.OpMemoryGrow{},
			compiler.OpMemorySize{},
			compiler.OpFloatRound{Kind: compiler.RoundNearest, Type: wasm.ValueTypeF64},
		},
	}

	code, relocs, traps := emit(t, fn)
	require.Empty(t, traps.traps)
	require.Equal(t, 4, len(relocs.relocs))

	wantNames := []compiler.ExternalName{
		compiler.FuncName(5),
		compiler.MemoryGrowName(),
		compiler.MemorySizeName(),
		compiler.LibCallName{Call: compiler.LibCallNearestF64},
	}
	// The placeholder exceeds 32 bits, so the assembler must pick
	// REX.W + B8 /r with an imm64: 0x48 0xb8 then 8 immediate bytes.
	placeholder := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}
	var prev compiler.CodeOffset
	for i, r := range relocs.relocs {
		require.Equal(t, compiler.RelocationKindAbs64, r.kind, "reloc %d", i)
		require.Zero(t, r.addend, "reloc %d", i)
		require.Equal(t, wantNames[i], r.name, "reloc %d", i)
		require.Greater(t, r.offset, prev, "reloc %d out of emission order", i)
		prev = r.offset

		require.Equal(t, []byte{0x48, 0xb8}, code[r.offset-2:r.offset], "reloc %d opcode", i)
		require.Equal(t, placeholder, code[r.offset:r.offset+8], "reloc %d immediate", i)
		// CALL AX right after the immediate.
		require.Equal(t, []byte{0xff, 0xd0}, code[r.offset+8:r.offset+10], "reloc %d call", i)
	}
}

func TestCompileAndEmit_unreachable(t *testing.T) {
	fn := &compiler.Function{
		Name: compiler.FuncName(0),
		Ops:  []compiler.Op{compiler.OpUnreachable{}},
	}

	code, relocs, traps := emit(t, fn)
	require.Empty(t, relocs.relocs)
	require.Equal(t, 1, len(traps.traps))

	tr := traps.traps[0]
	require.Equal(t, compiler.TrapCodeUnreachable, tr.code)
	require.Equal(t, []byte{0x0f, 0x0b}, code[tr.offset:tr.offset+2])
}

func TestCompileAndEmit_constsAndDrop(t *testing.T) {
	fn := &compiler.Function{
		Name: compiler.FuncName(0),
		Ops: []compiler.Op{
			compiler.OpI32Const{Value: 42},
			compiler.OpDrop{},
			compiler.OpI64Const{Value: -1},
			compiler.OpDrop{},
		},
	}

	code, relocs, traps := emit(t, fn)
	require.Empty(t, relocs.relocs)
	require.Empty(t, traps.traps)
	// MOVL $42, AX somewhere in the body.
	require.Contains(t, string(code), string([]byte{0xb8, 0x2a, 0x00, 0x00, 0x00}))
}

func TestCompileAndEmit_deterministic(t *testing.T) {
	fn := &compiler.Function{
		Name: compiler.FuncName(1),
		Ops: []compiler.Op{
			compiler.OpI64Const{Value: 1 << 40},
			compiler.OpCall{Func: 1},
			compiler.OpFloatRound{Kind: compiler.RoundCeil, Type: wasm.ValueTypeF32},
			compiler.OpUnreachable{},
		},
	}

	code1, relocs1, traps1 := emit(t, fn)
	code2, relocs2, traps2 := emit(t, fn)
	require.Equal(t, code1, code2)
	require.Equal(t, relocs1.relocs, relocs2.relocs)
	require.Equal(t, traps1.traps, traps2.traps)
}

func TestRoundLibCall(t *testing.T) {
	for _, tc := range []struct {
		op  compiler.OpFloatRound
		exp compiler.LibCall
	}{
		{compiler.OpFloatRound{Kind: compiler.RoundCeil, Type: wasm.ValueTypeF32}, compiler.LibCallCeilF32},
		{compiler.OpFloatRound{Kind: compiler.RoundCeil, Type: wasm.ValueTypeF64}, compiler.LibCallCeilF64},
		{compiler.OpFloatRound{Kind: compiler.RoundFloor, Type: wasm.ValueTypeF32}, compiler.LibCallFloorF32},
		{compiler.OpFloatRound{Kind: compiler.RoundFloor, Type: wasm.ValueTypeF64}, compiler.LibCallFloorF64},
		{compiler.OpFloatRound{Kind: compiler.RoundTrunc, Type: wasm.ValueTypeF32}, compiler.LibCallTruncF32},
		{compiler.OpFloatRound{Kind: compiler.RoundTrunc, Type: wasm.ValueTypeF64}, compiler.LibCallTruncF64},
		{compiler.OpFloatRound{Kind: compiler.RoundNearest, Type: wasm.ValueTypeF32}, compiler.LibCallNearestF32},
		{compiler.OpFloatRound{Kind: compiler.RoundNearest, Type: wasm.ValueTypeF64}, compiler.LibCallNearestF64},
	} {
		tc := tc
		t.Run(tc.exp.String(), func(t *testing.T) {
			actual, err := roundLibCall(tc.op)
			require.NoError(t, err)
			require.Equal(t, tc.exp, actual)
		})
	}

	t.Run("invalid type", func(t *testing.T) {
		_, err := roundLibCall(compiler.OpFloatRound{Kind: compiler.RoundCeil, Type: wasm.ValueTypeI32})
		require.EqualError(t, err, "invalid float rounding type i32")
	})
	t.Run("invalid kind", func(t *testing.T) {
		_, err := roundLibCall(compiler.OpFloatRound{Kind: 0xff, Type: wasm.ValueTypeF64})
		require.EqualError(t, err, "invalid float rounding kind 255")
	})
}
