package vm

import "fmt"

// ---------------------------------------------------------------------------
// Heap: arena of boxed objects
// ---------------------------------------------------------------------------

// ObjectKind identifies the payload of a HeapObject.
type ObjectKind uint8

const (
	ObjString  ObjectKind = iota + 1 // immutable string
	ObjBlock                         // callable compiled block
	ObjClosure                       // callable block bound to captured cells
)

func (k ObjectKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjBlock:
		return "block"
	case ObjClosure:
		return "closure"
	}
	return fmt.Sprintf("object(%d)", uint8(k))
}

// HeapObject is one boxed value. Objects are immutable once allocated; a
// closure's cells point at frame slots, which may change, but the cell list
// itself never does.
type HeapObject struct {
	Kind  ObjectKind
	Str   string
	Block *CompiledBlock
	Cells []*Value

	// Marked is reserved for a future mark-sweep collector. Nothing in this
	// package sets or reads it.
	Marked bool
}

// IsCallable reports whether the object can be the target of a Call.
func (o *HeapObject) IsCallable() bool {
	return o.Kind == ObjBlock || o.Kind == ObjClosure
}

// HeapRef identifies a heap slot. Gen must match the slot's generation for
// the reference to resolve; the zero HeapRef never resolves.
type HeapRef struct {
	Index uint32
	Gen   uint32
}

type heapSlot struct {
	obj *HeapObject
	gen uint32
}

// Heap is a dense arena owning every object allocated by one VM. Nothing is
// ever freed; a collector would walk roots and recycle slots by bumping
// their generation.
type Heap struct {
	slots []heapSlot
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Allocate places obj in a fresh slot and returns its reference.
func (h *Heap) Allocate(obj *HeapObject) HeapRef {
	idx := uint32(len(h.slots))
	h.slots = append(h.slots, heapSlot{obj: obj, gen: 1})
	return HeapRef{Index: idx, Gen: 1}
}

// AllocString boxes s and returns a reference value.
func (h *Heap) AllocString(s string) Value {
	return Ref(h.Allocate(&HeapObject{Kind: ObjString, Str: s}))
}

// AllocBlock boxes a compiled block as a callable and returns a reference value.
func (h *Heap) AllocBlock(b *CompiledBlock) Value {
	return Ref(h.Allocate(&HeapObject{Kind: ObjBlock, Block: b}))
}

// Get resolves a reference. It returns false for stale, zero, or foreign
// references.
func (h *Heap) Get(ref HeapRef) (*HeapObject, bool) {
	if int(ref.Index) >= len(h.slots) {
		return nil, false
	}
	slot := h.slots[ref.Index]
	if slot.gen != ref.Gen || slot.obj == nil {
		return nil, false
	}
	return slot.obj, true
}

// Deref resolves a reference value. Non-reference values yield false.
func (h *Heap) Deref(v Value) (*HeapObject, bool) {
	if !v.IsRef() {
		return nil, false
	}
	return h.Get(v.AsRef())
}

// Len returns the number of allocated objects.
func (h *Heap) Len() int {
	return len(h.slots)
}

// Objects calls fn for every allocated object, most recent first, until fn
// returns false.
func (h *Heap) Objects(fn func(HeapRef, *HeapObject) bool) {
	for i := len(h.slots) - 1; i >= 0; i-- {
		slot := h.slots[i]
		if slot.obj == nil {
			continue
		}
		if !fn(HeapRef{Index: uint32(i), Gen: slot.gen}, slot.obj) {
			return
		}
	}
}

// StringOf returns the contents of a boxed string value.
func (h *Heap) StringOf(v Value) (string, bool) {
	obj, ok := h.Deref(v)
	if !ok || obj.Kind != ObjString {
		return "", false
	}
	return obj.Str, true
}

// Display renders v for output. Strings print their contents, characters
// print bare, and callables print an opaque tag.
func (h *Heap) Display(v Value) string {
	switch v.Kind() {
	case KindChar:
		return string(v.AsChar())
	case KindRef:
		obj, ok := h.Get(v.AsRef())
		if !ok {
			return fmt.Sprintf("<dangling #%d>", v.AsRef().Index)
		}
		switch obj.Kind {
		case ObjString:
			return obj.Str
		case ObjBlock, ObjClosure:
			if obj.Block != nil && obj.Block.Name != "" {
				return "<callable " + obj.Block.Name + ">"
			}
			return "<callable>"
		}
		return "<object>"
	}
	return v.String()
}
