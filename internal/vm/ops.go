package vm

import "fun/internal/bytecode"

// executeExtended dispatches every opcode not handled inline by execute
// (arithmetic, collections, strings, conversions, bitwise, math, and I/O),
// grouped into the ops_*.go files by concern.
func (vm *VM) executeExtended(in bytecode.Instruction) error {
	switch in.Op {
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod,
		bytecode.OpLt, bytecode.OpLte, bytecode.OpGt, bytecode.OpGte,
		bytecode.OpEq, bytecode.OpNeq, bytecode.OpAnd, bytecode.OpOr, bytecode.OpNot:
		return vm.execArith(in)

	case bytecode.OpMakeArray, bytecode.OpMakeMap, bytecode.OpIndexGet, bytecode.OpIndexSet,
		bytecode.OpLen, bytecode.OpPush, bytecode.OpAPop, bytecode.OpSet, bytecode.OpInsert,
		bytecode.OpRemove, bytecode.OpSlice, bytecode.OpKeys, bytecode.OpValues, bytecode.OpHasKey,
		bytecode.OpContains, bytecode.OpIndexOf, bytecode.OpClear, bytecode.OpEnumerate, bytecode.OpZip:
		return vm.execCollections(in)

	case bytecode.OpSplit, bytecode.OpJoin, bytecode.OpSubstr, bytecode.OpFind:
		return vm.execStrings(in)

	case bytecode.OpToNumber, bytecode.OpToString, bytecode.OpTypeof, bytecode.OpCast,
		bytecode.OpUClamp, bytecode.OpSClamp:
		return vm.execConvert(in)

	case bytecode.OpBAnd, bytecode.OpBOr, bytecode.OpBXor, bytecode.OpBNot,
		bytecode.OpShl, bytecode.OpShr, bytecode.OpRol, bytecode.OpRor:
		return vm.execBitwise(in)

	case bytecode.OpMin, bytecode.OpMax, bytecode.OpClamp, bytecode.OpAbs, bytecode.OpPow,
		bytecode.OpRandomSeed, bytecode.OpRandomInt:
		return vm.execMath(in)

	case bytecode.OpReadFile, bytecode.OpWriteFile, bytecode.OpEnv:
		return vm.execIO(in)

	default:
		return unknownOpError(in)
	}
}
