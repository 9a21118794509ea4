package vm

import "fmt"

// run is the fetch-decode-execute loop. It returns when the outermost frame
// executes Return, or on the first fault.
func (vm *VM) run(cur CallInfo) (Value, *RuntimeFault) {
	for {
		code := cur.Block.Code
		if cur.PC < 0 || cur.PC >= len(code) {
			f := faultf(FaultIndexOutOfRange, "pc %d outside block of %d instructions", cur.PC, len(code))
			f.Block = cur.Block.Name
			f.PC = cur.PC
			return Null, f
		}

		in := code[cur.PC]
		vm.steps++
		if vm.Trace {
			fmt.Fprintf(vm.TraceOut, "[%04d] %-16s sp=%d\n", cur.PC, in, len(vm.stack))
		}

		next := cur.PC + 1
		var f *RuntimeFault

		switch in.Op {
		// ============ Arithmetic ============
		case OpAdd, OpSub, OpMul, OpDiv, OpRem, OpPow:
			var a, b, r Value
			if a, b, f = vm.pop2(); f == nil {
				if r, f = arithmetic(in.Op, a, b); f == nil {
					f = vm.push(r)
				}
			}

		case OpNeg:
			var a, r Value
			if a, f = vm.pop(); f == nil {
				if r, f = negate(a); f == nil {
					f = vm.push(r)
				}
			}

		// ============ Comparison ============
		case OpLt, OpGt, OpLtEq, OpGtEq:
			var a, b, r Value
			if a, b, f = vm.pop2(); f == nil {
				if r, f = compare(in.Op, a, b); f == nil {
					f = vm.push(r)
				}
			}

		case OpEq, OpNotEq:
			var a, b Value
			if a, b, f = vm.pop2(); f == nil {
				f = vm.push(Bool(a.Equal(b) == (in.Op == OpEq)))
			}

		// ============ Constants and Variables ============
		case OpLoadConst:
			if int(in.Arg) >= len(cur.Block.Constants) {
				f = faultf(FaultIndexOutOfRange, "constant %d of %d", in.Arg, len(cur.Block.Constants))
				break
			}
			f = vm.push(cur.Block.Constants[in.Arg])

		case OpLoadLocal:
			if int(in.Arg) >= len(cur.Locals) {
				f = faultf(FaultIndexOutOfRange, "local %d of %d", in.Arg, len(cur.Locals))
				break
			}
			f = vm.push(cur.Locals[in.Arg])

		case OpStoreLocal:
			if int(in.Arg) >= len(cur.Locals) {
				f = faultf(FaultIndexOutOfRange, "local %d of %d", in.Arg, len(cur.Locals))
				break
			}
			var v Value
			if v, f = vm.pop(); f == nil {
				cur.Locals[in.Arg] = v
			}

		case OpLoadCapture:
			if int(in.Arg) >= len(cur.Cells) {
				f = faultf(FaultIndexOutOfRange, "capture %d of %d", in.Arg, len(cur.Cells))
				break
			}
			f = vm.push(*cur.Cells[in.Arg])

		case OpStoreCapture:
			if int(in.Arg) >= len(cur.Cells) {
				f = faultf(FaultIndexOutOfRange, "capture %d of %d", in.Arg, len(cur.Cells))
				break
			}
			var v Value
			if v, f = vm.pop(); f == nil {
				*cur.Cells[in.Arg] = v
			}

		// ============ Control Flow ============
		case OpBranchTrue, OpBranchFalse:
			var cond Value
			if cond, f = vm.pop(); f != nil {
				break
			}
			if cond.Truthy() == (in.Op == OpBranchTrue) {
				next, f = branchTarget(cur, in)
			}

		case OpJump:
			next, f = branchTarget(cur, in)

		// ============ Stack ============
		case OpPop:
			_, f = vm.pop()

		// ============ Calls ============
		case OpCall:
			tail := cur.Block.Dispatch && next < len(code) && code[next].Op == OpReturn
			var callee CallInfo
			if callee, f = vm.enter(in.ArgCount(), tail); f != nil {
				break
			}
			if tail {
				// The arm replaces the dispatcher and returns to its caller.
				vm.stack = vm.stack[:cur.Base]
				callee.Base = cur.Base
				cur = callee
				continue
			}
			cur.PC = next
			vm.frames = append(vm.frames, cur)
			cur = callee
			continue

		case OpReturn:
			var result Value
			if result, f = vm.pop(); f != nil {
				break
			}
			if len(vm.frames) == 0 {
				return result, nil
			}
			if len(vm.stack) < cur.Base {
				f = faultf(FaultStackUnderflow, "frame popped below its base %d", cur.Base)
				break
			}
			vm.stack = vm.stack[:cur.Base]
			cur = vm.frames[len(vm.frames)-1]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if f = vm.push(result); f != nil {
				break
			}
			continue

		case OpMakeClosure:
			var closure Value
			if closure, f = vm.makeClosure(cur, in.Arg); f == nil {
				f = vm.push(closure)
			}

		case OpArgCount:
			f = vm.push(Int(int64(cur.Argc)))

		case OpNoMatch:
			f = faultf(FaultNoMatchingArm, "no arm accepts %d arguments", cur.Argc)
			f = vm.locate(f, cur, in)
			if pos, ok := vm.callSite(); ok {
				f.Pos = pos
			}
			return Null, f

		// ============ I/O ============
		case OpPrint:
			var v Value
			if v, f = vm.pop(); f == nil {
				fmt.Fprintln(vm.Out, vm.Heap.Display(v))
			}

		default:
			f = faultf(FaultInvalidOpcode, "unknown opcode 0x%02x", byte(in.Op))
		}

		if f != nil {
			return Null, vm.locate(f, cur, in)
		}
		cur.PC = next
	}
}

// enter validates a call of n arguments and builds the callee frame. The
// callee value and its arguments are removed from the operand stack. A tail
// call reuses the running frame, so it does not count against MaxFrames.
func (vm *VM) enter(n int, tail bool) (CallInfo, *RuntimeFault) {
	if len(vm.stack) < n+1 {
		return CallInfo{}, faultf(FaultStackUnderflow, "call needs %d values, have %d", n+1, len(vm.stack))
	}
	at := len(vm.stack) - n - 1
	callee := vm.stack[at]
	obj, ok := vm.Heap.Deref(callee)
	if !ok || !obj.IsCallable() {
		return CallInfo{}, faultf(FaultCallOnNonCallable, "%s is not callable", vm.Heap.Display(callee))
	}
	if !tail && len(vm.frames)+1 >= vm.MaxFrames {
		return CallInfo{}, faultf(FaultStackOverflow, "call depth exceeds %d frames", vm.MaxFrames)
	}
	block := obj.Block
	if n > block.NumLocals() && !block.Dispatch {
		return CallInfo{}, faultf(FaultIndexOutOfRange, "%d arguments for %d local slots", n, block.NumLocals())
	}

	locals := make([]Value, block.NumLocals())
	copy(locals, vm.stack[at+1:at+1+min(n, len(locals))])
	vm.stack = vm.stack[:at]

	return CallInfo{
		Block:  block,
		Locals: locals,
		Cells:  obj.Cells,
		Base:   at,
		Argc:   n,
	}, nil
}

// makeClosure binds the callable constant idx to cells taken from the
// running frame, per the block's capture descriptors.
func (vm *VM) makeClosure(cur CallInfo, idx uint16) (Value, *RuntimeFault) {
	if int(idx) >= len(cur.Block.Constants) {
		return Null, faultf(FaultIndexOutOfRange, "constant %d of %d", idx, len(cur.Block.Constants))
	}
	proto, ok := vm.Heap.Deref(cur.Block.Constants[idx])
	if !ok || proto.Kind != ObjBlock {
		return Null, faultf(FaultTypeMismatch, "closure prototype must be a block")
	}

	cells := make([]*Value, len(proto.Block.Captures))
	for i, d := range proto.Block.Captures {
		if d.FromCapture {
			if int(d.Index) >= len(cur.Cells) {
				return Null, faultf(FaultIndexOutOfRange, "capture %q from cell %d of %d", d.Name, d.Index, len(cur.Cells))
			}
			cells[i] = cur.Cells[d.Index]
			continue
		}
		if int(d.Index) >= len(cur.Locals) {
			return Null, faultf(FaultIndexOutOfRange, "capture %q from local %d of %d", d.Name, d.Index, len(cur.Locals))
		}
		cells[i] = &cur.Locals[d.Index]
	}

	ref := vm.Heap.Allocate(&HeapObject{Kind: ObjClosure, Block: proto.Block, Cells: cells})
	return Ref(ref), nil
}

// callSite returns the source position of the Call that entered the running
// frame, if the caller recorded one.
func (vm *VM) callSite() (SourcePos, bool) {
	if len(vm.frames) == 0 {
		return SourcePos{}, false
	}
	caller := vm.frames[len(vm.frames)-1]
	pos := caller.Block.PositionAt(caller.PC - 1)
	return pos, pos.IsKnown()
}

func branchTarget(cur CallInfo, in Instruction) (int, *RuntimeFault) {
	target := cur.PC + int(in.Disp())
	if target < 0 || target >= len(cur.Block.Code) {
		return 0, faultf(FaultIndexOutOfRange, "branch to %d outside block of %d instructions", target, len(cur.Block.Code))
	}
	return target, nil
}

func (vm *VM) locate(f *RuntimeFault, cur CallInfo, in Instruction) *RuntimeFault {
	f.Block = cur.Block.Name
	f.PC = cur.PC
	f.Op = in.Op
	f.Pos = cur.Block.PositionAt(cur.PC)
	log.Debugf("fault in %s at %d: %s", f.Block, f.PC, f.Msg)
	return f
}
