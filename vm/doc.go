// Package vm implements the sloth virtual machine.
//
// This package contains:
//   - Tagged value representation and the heap arena for boxed strings,
//     blocks and closures
//   - The instruction set and compiled block format
//   - The stack-based interpreter with call frames and typed runtime faults
//   - A disassembler and a CBOR image format for compiled code
package vm
