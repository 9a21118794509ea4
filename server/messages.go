package server

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/sloth/compiler"
)

// EvaluateRequest asks the service to compile and run a program.
type EvaluateRequest struct {
	Source string `json:"source"`
}

// EvaluateResponse reports the outcome of one run. Compile problems are
// reported as diagnostics and runtime faults as Fault; neither is an RPC
// error.
type EvaluateResponse struct {
	RunID       string       `json:"runId"`
	Success     bool         `json:"success"`
	Result      string       `json:"result,omitempty"`
	Kind        string       `json:"kind,omitempty"`
	Output      string       `json:"output,omitempty"`
	Steps       uint64       `json:"steps"`
	Cached      bool         `json:"cached,omitempty"`
	Fault       *Fault       `json:"fault,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Fault describes a runtime fault.
type Fault struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Block   string `json:"block,omitempty"`
	PC      int    `json:"pc"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Diagnostic is a positioned syntax, check or compile error.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// CompileRequest asks for the image of a program.
type CompileRequest struct {
	Source string `json:"source"`
}

// CompileResponse carries the encoded image and its shape.
type CompileResponse struct {
	Image        []byte       `json:"image,omitempty"`
	Instructions int          `json:"instructions"`
	Constants    int          `json:"constants"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty"`
}

// DisassembleRequest asks for a bytecode listing of a program.
type DisassembleRequest struct {
	Source string `json:"source"`
}

// DisassembleResponse carries the listing.
type DisassembleResponse struct {
	Listing     string       `json:"listing,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// diagnosticsOf converts a compilation error into response diagnostics. An
// error that did not come from a compilation stage is returned as is.
func diagnosticsOf(err error) ([]Diagnostic, error) {
	d, ok := compiler.DiagnosticOf(err)
	if !ok {
		return nil, err
	}
	return []Diagnostic{{
		Stage:   d.Stage,
		Line:    d.Pos.Line,
		Column:  d.Pos.Column,
		Message: d.Msg,
	}}, nil
}

// jsonCodec lets connect carry plain Go structs. connect's own JSON codec
// only accepts protobuf messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}
