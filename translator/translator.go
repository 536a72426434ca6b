// Package translator lowers raw WebAssembly function bodies into the
// backend form consumed by compiler.TargetISA implementations.
package translator

import (
	"fmt"

	"github.com/aotlink/aotlink/compiler"
	"github.com/aotlink/aotlink/wasm"
	"github.com/aotlink/aotlink/wasm/leb128"
)

// Instruction opcodes in the WebAssembly 1.0 binary format.
// See https://www.w3.org/TR/wasm-core-1/#a7-index-of-instructions
const (
	OpcodeUnreachable = 0x00
	OpcodeEnd         = 0x0b
	OpcodeCall        = 0x10
	OpcodeDrop        = 0x1a
	OpcodeMemorySize  = 0x3f
	OpcodeMemoryGrow  = 0x40
	OpcodeI32Const    = 0x41
	OpcodeI64Const    = 0x42
	OpcodeF32Ceil     = 0x8d
	OpcodeF32Floor    = 0x8e
	OpcodeF32Trunc    = 0x8f
	OpcodeF32Nearest  = 0x90
	OpcodeF64Ceil     = 0x9b
	OpcodeF64Floor    = 0x9c
	OpcodeF64Trunc    = 0x9d
	OpcodeF64Nearest  = 0x9e
)

// FuncTranslator implements compiler.Translator for the instruction subset
// above. Anything else in a body is an unsupported construct and fails the
// translation, which in turn fails the whole module compile.
type FuncTranslator struct{}

// NewFuncTranslator returns a translator ready for use. It holds no state
// across functions.
func NewFuncTranslator() *FuncTranslator {
	return &FuncTranslator{}
}

// Translate implements compiler.Translator.Translate. body is one code
// section entry without its size prefix: the locals vector followed by the
// function's expression.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-func
func (t *FuncTranslator) Translate(body []byte, fn *compiler.Function, env *compiler.FuncEnvironment) error {
	pos, err := skipLocals(body)
	if err != nil {
		return err
	}

	funcCount := env.Module.FunctionCount()
	ended := false
	for pos < len(body) {
		if ended {
			return fmt.Errorf("unexpected data after end opcode at offset %d", pos)
		}
		opcode := body[pos]
		pos++
		switch opcode {
		case OpcodeUnreachable:
			fn.Ops = append(fn.Ops, compiler.OpUnreachable{})
		case OpcodeEnd:
			ended = true
		case OpcodeCall:
			index, n, err := leb128.DecodeUint32(body[pos:])
			if err != nil {
				return fmt.Errorf("read call target: %w", err)
			}
			pos += n
			if index >= funcCount {
				return fmt.Errorf("call target %d out of range: the function index space has %d functions", index, funcCount)
			}
			fn.Ops = append(fn.Ops, compiler.OpCall{Func: wasm.FunctionIndex(index)})
		case OpcodeDrop:
			fn.Ops = append(fn.Ops, compiler.OpDrop{})
		case OpcodeMemorySize, OpcodeMemoryGrow:
			// Both carry a reserved byte fixed to zero in WebAssembly 1.0.
			if pos >= len(body) {
				return fmt.Errorf("missing reserved byte for opcode 0x%x", opcode)
			}
			if body[pos] != 0 {
				return fmt.Errorf("invalid reserved byte 0x%x for opcode 0x%x", body[pos], opcode)
			}
			pos++
			if opcode == OpcodeMemorySize {
				fn.Ops = append(fn.Ops, compiler.OpMemorySize{})
			} else {
				fn.Ops = append(fn.Ops, compiler.OpMemoryGrow{})
			}
		case OpcodeI32Const:
			v, n, err := leb128.DecodeInt32(body[pos:])
			if err != nil {
				return fmt.Errorf("read i32.const value: %w", err)
			}
			pos += n
			fn.Ops = append(fn.Ops, compiler.OpI32Const{Value: v})
		case OpcodeI64Const:
			v, n, err := leb128.DecodeInt64(body[pos:])
			if err != nil {
				return fmt.Errorf("read i64.const value: %w", err)
			}
			pos += n
			fn.Ops = append(fn.Ops, compiler.OpI64Const{Value: v})
		case OpcodeF32Ceil, OpcodeF32Floor, OpcodeF32Trunc, OpcodeF32Nearest:
			fn.Ops = append(fn.Ops, compiler.OpFloatRound{Kind: roundKind(opcode - OpcodeF32Ceil), Type: wasm.ValueTypeF32})
		case OpcodeF64Ceil, OpcodeF64Floor, OpcodeF64Trunc, OpcodeF64Nearest:
			fn.Ops = append(fn.Ops, compiler.OpFloatRound{Kind: roundKind(opcode - OpcodeF64Ceil), Type: wasm.ValueTypeF64})
		default:
			return fmt.Errorf("invalid or unsupported opcode 0x%x at offset %d", opcode, pos-1)
		}
	}
	if !ended {
		return fmt.Errorf("function body must end with end opcode")
	}
	return nil
}

// roundKind relies on ceil/floor/trunc/nearest being consecutive opcodes for
// both float widths.
func roundKind(delta byte) compiler.RoundKind {
	return compiler.RoundKind(delta)
}

// skipLocals consumes the locals vector at the head of a function body and
// returns the offset of the first instruction.
//
// See https://www.w3.org/TR/wasm-core-1/#binary-local
func skipLocals(body []byte) (int, error) {
	entries, pos, err := leb128.DecodeUint32(body)
	if err != nil {
		return 0, fmt.Errorf("read locals vector size: %w", err)
	}
	for i := uint32(0); i < entries; i++ {
		_, n, err := leb128.DecodeUint32(body[pos:])
		if err != nil {
			return 0, fmt.Errorf("read locals[%d] count: %w", i, err)
		}
		pos += n
		if pos >= len(body) {
			return 0, fmt.Errorf("missing locals[%d] value type", i)
		}
		switch body[pos] {
		case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		default:
			return 0, fmt.Errorf("invalid locals[%d] value type 0x%x", i, body[pos])
		}
		pos++
	}
	return pos, nil
}
