package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/chazu/sloth/cache"
	"github.com/chazu/sloth/vm"
)

// EvalServiceName is the fully qualified service name.
const EvalServiceName = "sloth.v1.EvalService"

// Procedure paths of EvalService.
const (
	EvaluateProcedure    = "/" + EvalServiceName + "/Evaluate"
	CompileProcedure     = "/" + EvalServiceName + "/Compile"
	DisassembleProcedure = "/" + EvalServiceName + "/Disassemble"
)

// EvalService implements the evaluation Connect handlers.
type EvalService struct {
	worker *VMWorker
	store  *cache.Store
}

// NewEvalService creates an EvalService. store may be nil to disable the
// image cache.
func NewEvalService(worker *VMWorker, store *cache.Store) *EvalService {
	return &EvalService{worker: worker, store: store}
}

// NewEvalServiceHandler builds the HTTP handler serving svc and returns the
// path prefix to mount it on.
func NewEvalServiceHandler(svc *EvalService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, opts...))
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, opts...))
	mux.Handle(DisassembleProcedure, connect.NewUnaryHandler(DisassembleProcedure, svc.Disassemble, opts...))
	return "/" + EvalServiceName + "/", mux
}

func requireSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("source is required"))
	}
	return nil
}

// Evaluate compiles and runs a program in a fresh VM.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	source := req.Msg.Source
	if err := requireSource(source); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		return s.evaluate(v, runID, source)
	})
	if err == nil {
		err, _ = result.(error)
	}
	if err != nil {
		log.Errorf("run %s: %s", runID, err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*EvaluateResponse)), nil
}

// evaluate compiles and runs source. Must be called on the VM worker
// goroutine. It returns an *EvaluateResponse or an error.
func (s *EvalService) evaluate(v *vm.VM, runID, source string) interface{} {
	resp := &EvaluateResponse{RunID: runID}

	main, hit, err := s.store.Compile(source, v.Heap)
	if err != nil {
		diags, err := diagnosticsOf(err)
		if err != nil {
			return err
		}
		resp.Diagnostics = diags
		return resp
	}
	resp.Cached = hit

	var out bytes.Buffer
	v.Out = &out
	value, err := v.Execute(main)
	resp.Output = out.String()
	resp.Steps = v.Steps()

	var fault *vm.RuntimeFault
	switch {
	case errors.As(err, &fault):
		log.Errorf("run %s faulted: %s", runID, fault)
		resp.Fault = &Fault{
			Kind:    fault.Kind.String(),
			Message: fault.Msg,
			Block:   fault.Block,
			PC:      fault.PC,
			Line:    fault.Pos.Line,
			Column:  fault.Pos.Column,
		}
	case err != nil:
		return err
	default:
		resp.Success = true
		resp.Result = v.Display(value)
		resp.Kind = value.Kind().String()
	}
	return resp
}

// Compile returns the encoded image of a program.
func (s *EvalService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	source := req.Msg.Source
	if err := requireSource(source); err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		main, _, err := s.store.Compile(source, v.Heap)
		if err != nil {
			diags, err := diagnosticsOf(err)
			if err != nil {
				return err
			}
			return &CompileResponse{Diagnostics: diags}
		}
		image, err := vm.MarshalImage(main, v.Heap)
		if err != nil {
			return err
		}
		return &CompileResponse{
			Image:        image,
			Instructions: len(main.Code),
			Constants:    len(main.Constants),
		}
	})
	if err == nil {
		err, _ = result.(error)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*CompileResponse)), nil
}

// Disassemble returns the bytecode listing of a program.
func (s *EvalService) Disassemble(
	ctx context.Context,
	req *connect.Request[DisassembleRequest],
) (*connect.Response[DisassembleResponse], error) {
	source := req.Msg.Source
	if err := requireSource(source); err != nil {
		return nil, err
	}

	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		main, _, err := s.store.Compile(source, v.Heap)
		if err != nil {
			diags, err := diagnosticsOf(err)
			if err != nil {
				return err
			}
			return &DisassembleResponse{Diagnostics: diags}
		}
		return &DisassembleResponse{Listing: main.Disassemble(v.Heap)}
	})
	if err == nil {
		err, _ = result.(error)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*DisassembleResponse)), nil
}
