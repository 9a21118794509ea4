package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of b. Callable constants are
// listed recursively after the block that references them. heap may be nil,
// in which case references print as opaque tags.
func (b *CompiledBlock) Disassemble(heap *Heap) string {
	var sb strings.Builder
	seen := make(map[*CompiledBlock]bool)
	disassembleInto(&sb, b, heap, seen)
	return sb.String()
}

func disassembleInto(sb *strings.Builder, b *CompiledBlock, heap *Heap, seen map[*CompiledBlock]bool) {
	seen[b] = true

	name := b.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(sb, "; === %s ===\n", name)

	if len(b.Locals) > 0 {
		fmt.Fprintf(sb, "; locals (%d): %s\n", len(b.Locals), strings.Join(b.Locals, ", "))
	}

	if len(b.Captures) > 0 {
		sb.WriteString("; captures:\n")
		for i, c := range b.Captures {
			source := "local"
			if c.FromCapture {
				source = "capture"
			}
			fmt.Fprintf(sb, ";   [%3d] %s (%s %d)\n", i, c.Name, source, c.Index)
		}
	}

	var nested []*CompiledBlock
	if len(b.Constants) > 0 {
		sb.WriteString("; constants:\n")
		for i, c := range b.Constants {
			fmt.Fprintf(sb, ";   [%3d] %s\n", i, describeConstant(c, heap))
			if heap == nil {
				continue
			}
			if obj, ok := heap.Deref(c); ok && obj.Block != nil && !seen[obj.Block] {
				nested = append(nested, obj.Block)
				seen[obj.Block] = true
			}
		}
	}

	sb.WriteString("; code:\n")
	for pc, in := range b.Code {
		fmt.Fprintf(sb, "%04d  %-20s", pc, in)
		if in.Op.IsBranch() {
			fmt.Fprintf(sb, " ; -> %04d", pc+int(in.Disp()))
		}
		if pos := b.PositionAt(pc); pos.IsKnown() {
			fmt.Fprintf(sb, " ; line %d", pos.Line)
		}
		sb.WriteString("\n")
	}

	for _, n := range nested {
		sb.WriteString("\n")
		disassembleInto(sb, n, heap, seen)
	}
}

func describeConstant(v Value, heap *Heap) string {
	if !v.IsRef() || heap == nil {
		return v.String()
	}
	obj, ok := heap.Get(v.AsRef())
	if !ok {
		return v.String()
	}
	switch obj.Kind {
	case ObjString:
		s := obj.Str
		if len(s) > 40 {
			s = s[:37] + "..."
		}
		return fmt.Sprintf("%q", s)
	case ObjBlock, ObjClosure:
		return fmt.Sprintf("<block %s>", obj.Block.Name)
	}
	return v.String()
}
