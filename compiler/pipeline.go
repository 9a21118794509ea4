package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/sloth/vm"
)

// Unit is the output of every compilation stage for one source text.
type Unit struct {
	Program *Block
	Check   *CheckResult
	Main    *vm.CompiledBlock
}

// CompileSource runs lex, parse, check and codegen over src. The first error
// of any stage is returned unwrapped, so callers can tell stages apart with
// errors.As.
func CompileSource(src string, alloc Allocator) (*Unit, error) {
	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	check, err := Check(prog)
	if err != nil {
		return nil, err
	}
	main, err := New(alloc).Compile(prog)
	if err != nil {
		return nil, err
	}
	return &Unit{Program: prog, Check: check, Main: main}, nil
}

// Diagnostic is a positioned problem found in source text.
type Diagnostic struct {
	Stage string // "syntax", "check", "compile" or "runtime"
	Pos   Position
	Msg   string
}

func (d Diagnostic) String() string {
	if d.Pos.Line > 0 {
		return fmt.Sprintf("%d:%d: %s error: %s", d.Pos.Line, d.Pos.Column, d.Stage, d.Msg)
	}
	return fmt.Sprintf("%s error: %s", d.Stage, d.Msg)
}

// DiagnosticOf classifies err. It reports false for errors that did not
// come from a compilation stage or the VM.
func DiagnosticOf(err error) (Diagnostic, bool) {
	var (
		syn   *SyntaxError
		chk   *CheckError
		comp  *CompileError
		fault *vm.RuntimeFault
	)
	switch {
	case errors.As(err, &syn):
		return Diagnostic{Stage: "syntax", Pos: syn.Pos, Msg: syn.Msg}, true
	case errors.As(err, &chk):
		return Diagnostic{Stage: "check", Pos: chk.Pos, Msg: chk.Msg}, true
	case errors.As(err, &comp):
		msg := comp.Kind.String()
		if comp.Msg != "" {
			msg += ": " + comp.Msg
		}
		return Diagnostic{Stage: "compile", Pos: comp.Pos, Msg: msg}, true
	case errors.As(err, &fault):
		return Diagnostic{
			Stage: "runtime",
			Pos:   Position{Line: fault.Pos.Line, Column: fault.Pos.Column},
			Msg:   fmt.Sprintf("%s: %s", fault.Kind, fault.Msg),
		}, true
	}
	return Diagnostic{}, false
}

// RenderError formats err for a terminal. Positioned errors get the source
// line and a caret under the column:
//
//	ln 2, cl 6| x := y + 1
//	                 ^
func RenderError(src string, err error) string {
	d, ok := DiagnosticOf(err)
	if !ok || d.Pos.Line <= 0 {
		return err.Error()
	}
	lines := strings.Split(src, "\n")
	if d.Pos.Line > len(lines) {
		return d.String()
	}
	line := strings.TrimRight(lines[d.Pos.Line-1], "\r")

	prefix := fmt.Sprintf("ln %d, cl %d| ", d.Pos.Line, d.Pos.Column)
	var caret strings.Builder
	caret.WriteString(strings.Repeat(" ", len(prefix)))
	runes := []rune(line)
	for i := 0; i < d.Pos.Column-1; i++ {
		if i < len(runes) && runes[i] == '\t' {
			caret.WriteRune('\t')
		} else {
			caret.WriteRune(' ')
		}
	}
	caret.WriteRune('^')

	return fmt.Sprintf("%s error: %s\n%s%s\n%s", d.Stage, d.Msg, prefix, line, caret.String())
}
