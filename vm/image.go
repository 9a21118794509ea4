package vm

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Images: portable CBOR encoding of a compiled block tree
// ---------------------------------------------------------------------------
//
// Heap references cannot leave the heap that issued them, so an image
// carries its own object tables. Every string and block reachable from the
// root's constants is copied in once per distinct reference, and constants
// point at table entries. Loading allocates the tables into the target heap,
// which preserves reference identity within the image.

// ImageVersion is the current image format version.
const ImageVersion = 2

const imageMagic = "SLTH"

// ErrBadImage reports an undecodable or inconsistent image.
var ErrBadImage = errors.New("bad image")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type imageFile struct {
	Magic   string       `cbor:"1,keyasint"`
	Version int          `cbor:"2,keyasint"`
	Root    int          `cbor:"3,keyasint"`
	Blocks  []imageBlock `cbor:"4,keyasint"`
	Strings []string     `cbor:"5,keyasint,omitempty"`
}

type imageBlock struct {
	Name      string              `cbor:"1,keyasint"`
	Code      []Instruction       `cbor:"2,keyasint"`
	Constants []imageValue        `cbor:"3,keyasint,omitempty"`
	Locals    []string            `cbor:"4,keyasint,omitempty"`
	Captures  []CaptureDescriptor `cbor:"5,keyasint,omitempty"`
	Positions []SourcePos         `cbor:"6,keyasint,omitempty"`
	Dispatch  bool                `cbor:"7,keyasint,omitempty"`
}

type imageValue struct {
	Kind  Kind       `cbor:"1,keyasint"`
	Bits  uint64     `cbor:"2,keyasint,omitempty"`
	Obj   ObjectKind `cbor:"3,keyasint,omitempty"`
	Index int        `cbor:"4,keyasint,omitempty"`
}

type imageWriter struct {
	heap    *Heap
	file    imageFile
	blocks  map[HeapRef]int
	strings map[HeapRef]int
}

// MarshalImage encodes root and everything its constants reference.
func MarshalImage(root *CompiledBlock, heap *Heap) ([]byte, error) {
	w := &imageWriter{
		heap:    heap,
		file:    imageFile{Magic: imageMagic, Version: ImageVersion},
		blocks:  make(map[HeapRef]int),
		strings: make(map[HeapRef]int),
	}
	idx, err := w.addBlock(root)
	if err != nil {
		return nil, err
	}
	w.file.Root = idx
	return cborEncMode.Marshal(&w.file)
}

func (w *imageWriter) addBlock(b *CompiledBlock) (int, error) {
	idx := len(w.file.Blocks)
	w.file.Blocks = append(w.file.Blocks, imageBlock{})

	ib := imageBlock{
		Name:      b.Name,
		Code:      b.Code,
		Locals:    b.Locals,
		Captures:  b.Captures,
		Positions: b.Positions,
		Dispatch:  b.Dispatch,
	}
	for i, c := range b.Constants {
		v, err := w.value(c)
		if err != nil {
			return 0, fmt.Errorf("block %q constant %d: %w", b.Name, i, err)
		}
		ib.Constants = append(ib.Constants, v)
	}
	w.file.Blocks[idx] = ib
	return idx, nil
}

func (w *imageWriter) value(v Value) (imageValue, error) {
	if !v.IsRef() {
		return imageValue{Kind: v.kind, Bits: v.bits}, nil
	}
	ref := v.AsRef()
	obj, ok := w.heap.Get(ref)
	if !ok {
		return imageValue{}, fmt.Errorf("dangling reference #%d", ref.Index)
	}
	switch obj.Kind {
	case ObjString:
		idx, seen := w.strings[ref]
		if !seen {
			idx = len(w.file.Strings)
			w.file.Strings = append(w.file.Strings, obj.Str)
			w.strings[ref] = idx
		}
		return imageValue{Kind: KindRef, Obj: ObjString, Index: idx}, nil
	case ObjBlock:
		idx, seen := w.blocks[ref]
		if !seen {
			var err error
			if idx, err = w.addBlock(obj.Block); err != nil {
				return imageValue{}, err
			}
			w.blocks[ref] = idx
		}
		return imageValue{Kind: KindRef, Obj: ObjBlock, Index: idx}, nil
	}
	return imageValue{}, fmt.Errorf("cannot store %s objects in an image", obj.Kind)
}

// UnmarshalImage decodes an image, allocating its objects into heap, and
// returns the root block.
func UnmarshalImage(data []byte, heap *Heap) (*CompiledBlock, error) {
	var file imageFile
	if err := cbor.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if file.Magic != imageMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadImage, file.Magic)
	}
	if file.Version != ImageVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrBadImage, file.Version, ImageVersion)
	}
	if file.Root < 0 || file.Root >= len(file.Blocks) {
		return nil, fmt.Errorf("%w: root block %d of %d", ErrBadImage, file.Root, len(file.Blocks))
	}

	strs := make([]Value, len(file.Strings))
	for i, s := range file.Strings {
		strs[i] = heap.AllocString(s)
	}

	blocks := make([]*CompiledBlock, len(file.Blocks))
	refs := make([]Value, len(file.Blocks))
	for i := range file.Blocks {
		blocks[i] = &CompiledBlock{}
		if i != file.Root {
			refs[i] = heap.AllocBlock(blocks[i])
		}
	}

	for i, ib := range file.Blocks {
		b := blocks[i]
		b.Name = ib.Name
		b.Code = ib.Code
		b.Locals = ib.Locals
		b.Captures = ib.Captures
		b.Positions = ib.Positions
		b.Dispatch = ib.Dispatch
		for pc, in := range ib.Code {
			if _, ok := GetOpcodeInfo(in.Op); !ok {
				return nil, fmt.Errorf("%w: block %q instruction %d: unknown opcode 0x%02x", ErrBadImage, ib.Name, pc, byte(in.Op))
			}
		}
		for j, iv := range ib.Constants {
			v, err := iv.decode(strs, refs, file.Root)
			if err != nil {
				return nil, fmt.Errorf("%w: block %q constant %d: %v", ErrBadImage, ib.Name, j, err)
			}
			b.Constants = append(b.Constants, v)
		}
	}
	log.Debugf("loaded image: %d blocks, %d strings", len(blocks), len(strs))
	return blocks[file.Root], nil
}

func (iv imageValue) decode(strs, blocks []Value, root int) (Value, error) {
	switch iv.Kind {
	case KindNull, KindBool, KindInt, KindFloat, KindChar:
		return Value{kind: iv.Kind, bits: iv.Bits}, nil
	case KindRef:
		switch iv.Obj {
		case ObjString:
			if iv.Index < 0 || iv.Index >= len(strs) {
				return Null, fmt.Errorf("string %d of %d", iv.Index, len(strs))
			}
			return strs[iv.Index], nil
		case ObjBlock:
			if iv.Index < 0 || iv.Index >= len(blocks) || iv.Index == root {
				return Null, fmt.Errorf("block reference %d", iv.Index)
			}
			return blocks[iv.Index], nil
		}
		return Null, fmt.Errorf("object kind %s", iv.Obj)
	}
	return Null, fmt.Errorf("value kind %s", iv.Kind)
}
