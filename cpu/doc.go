// Package cpu implements the register machine and assembler for asmvm.
//
// The CPU consists of a byte-offset program counter, thirty-two signed
// 32-bit general-purpose registers ($0-$31), a remainder register written by
// division, and a conditional flag written by comparisons. Programs are flat
// bytecode: a one byte opcode followed by one byte per register operand and
// two big-endian bytes per immediate operand.
//
// The assembler accepts one instruction per mnemonic, with '$N' register and
// '#N' immediate operands, and produces a Program that encodes to bytecode.
package cpu
