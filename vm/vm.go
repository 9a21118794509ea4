package vm

import (
	"errors"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sloth.vm")

const (
	// DefaultMaxStack bounds the operand stack.
	DefaultMaxStack = 1 << 16
	// DefaultMaxFrames bounds call depth. A function call takes one frame:
	// the arm replaces its dispatcher's frame.
	DefaultMaxFrames = 1024
)

// CallInfo is the saved state of a suspended caller, or of the running
// frame while it executes. Locals is moved, never copied, so closure cells
// pointing into it stay live across calls.
type CallInfo struct {
	Block  *CompiledBlock
	PC     int
	Locals []Value
	Cells  []*Value
	Base   int // operand stack height below this frame's values
	Argc   int
}

// VM is a stack-based interpreter for compiled blocks. A VM is not safe for
// concurrent use; server code serializes access through a single worker.
type VM struct {
	Heap *Heap

	// Out receives the output of Print.
	Out io.Writer

	// Trace, when set, writes one line per executed instruction to TraceOut.
	Trace    bool
	TraceOut io.Writer

	MaxStack  int
	MaxFrames int

	stack  []Value
	frames []CallInfo
	steps  uint64
}

// Option configures a VM.
type Option func(*VM)

// WithOutput directs Print output to w.
func WithOutput(w io.Writer) Option {
	return func(v *VM) { v.Out = w }
}

// WithLimits sets the operand stack and call depth limits. Non-positive
// values keep the defaults.
func WithLimits(maxStack, maxFrames int) Option {
	return func(v *VM) {
		if maxStack > 0 {
			v.MaxStack = maxStack
		}
		if maxFrames > 0 {
			v.MaxFrames = maxFrames
		}
	}
}

// WithTrace enables instruction tracing to w.
func WithTrace(w io.Writer) Option {
	return func(v *VM) {
		v.Trace = true
		v.TraceOut = w
	}
}

// WithHeap makes the VM share an existing heap, e.g. the one a compiler
// boxed its constants into.
func WithHeap(h *Heap) Option {
	return func(v *VM) { v.Heap = h }
}

// NewVM creates a VM with an empty heap.
func NewVM(opts ...Option) *VM {
	v := &VM{
		Heap:      NewHeap(),
		Out:       os.Stdout,
		TraceOut:  os.Stderr,
		MaxStack:  DefaultMaxStack,
		MaxFrames: DefaultMaxFrames,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AllocString boxes s on the VM's heap.
func (vm *VM) AllocString(s string) Value { return vm.Heap.AllocString(s) }

// AllocBlock boxes b on the VM's heap as a callable.
func (vm *VM) AllocBlock(b *CompiledBlock) Value { return vm.Heap.AllocBlock(b) }

// Display renders v, resolving heap references.
func (vm *VM) Display(v Value) string { return vm.Heap.Display(v) }

// Steps returns the number of instructions executed by the last run.
func (vm *VM) Steps() uint64 { return vm.steps }

// StackDepth returns the current operand stack height.
func (vm *VM) StackDepth() int { return len(vm.stack) }

// Execute runs block from instruction 0 to its final Return and yields the
// returned value. Errors are *RuntimeFault.
func (vm *VM) Execute(block *CompiledBlock) (Value, error) {
	if block == nil {
		return Null, errors.New("vm: execute nil block")
	}
	return vm.start(CallInfo{
		Block:  block,
		Locals: make([]Value, block.NumLocals()),
	})
}

// Invoke calls a callable value from Go with the given arguments, as a Call
// instruction would.
func (vm *VM) Invoke(callee Value, args ...Value) (Value, error) {
	obj, ok := vm.Heap.Deref(callee)
	if !ok || !obj.IsCallable() {
		return Null, faultf(FaultCallOnNonCallable, "%s is not callable", vm.Display(callee))
	}
	if len(args) > obj.Block.NumLocals() && !obj.Block.Dispatch {
		return Null, faultf(FaultIndexOutOfRange, "%d arguments for %d local slots", len(args), obj.Block.NumLocals())
	}
	locals := make([]Value, obj.Block.NumLocals())
	copy(locals, args[:min(len(args), len(locals))])
	return vm.start(CallInfo{
		Block:  obj.Block,
		Locals: locals,
		Cells:  obj.Cells,
		Argc:   len(args),
	})
}

func (vm *VM) start(frame CallInfo) (Value, error) {
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.steps = 0

	log.Debugf("execute %q: %d instructions, %d constants, %d locals",
		frame.Block.Name, len(frame.Block.Code), len(frame.Block.Constants), len(frame.Block.Locals))

	result, fault := vm.run(frame)
	log.Debugf("executed %d instructions, heap holds %d objects", vm.steps, vm.Heap.Len())
	if fault != nil {
		return Null, fault
	}
	return result, nil
}

func (vm *VM) push(v Value) *RuntimeFault {
	if len(vm.stack) >= vm.MaxStack {
		return faultf(FaultStackOverflow, "operand stack exceeds %d values", vm.MaxStack)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop() (Value, *RuntimeFault) {
	n := len(vm.stack)
	if n == 0 {
		return Null, faultf(FaultStackUnderflow, "pop from empty stack")
	}
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v, nil
}

// pop2 pops b then a, returning them in source order.
func (vm *VM) pop2() (Value, Value, *RuntimeFault) {
	n := len(vm.stack)
	if n < 2 {
		return Null, Null, faultf(FaultStackUnderflow, "need 2 operands, have %d", n)
	}
	a, b := vm.stack[n-2], vm.stack[n-1]
	vm.stack = vm.stack[:n-2]
	return a, b, nil
}
