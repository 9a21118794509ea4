// Sloth CLI - compile and run sloth programs, or serve them over RPC and LSP
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/sloth/cache"
	"github.com/chazu/sloth/compiler"
	"github.com/chazu/sloth/manifest"
	"github.com/chazu/sloth/server"
	"github.com/chazu/sloth/vm"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	expr      string
	disasm    bool
	trace     bool
	emit      string
	load      string
	serve     string
	lsp       bool
	noCache   bool
	verbosity int
	maxStack  int
	maxFrames int
}

// run is the whole CLI; it returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("sloth", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.expr, "e", "", "Evaluate the given program text")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print the bytecode listing instead of running")
	fs.BoolVar(&opts.trace, "trace", false, "Trace every executed instruction to stderr")
	fs.StringVar(&opts.emit, "emit", "", "Write the compiled image to `file` instead of running")
	fs.StringVar(&opts.load, "load", "", "Run a compiled image `file`")
	fs.StringVar(&opts.serve, "serve", "", "Start the evaluation server on `addr` (\"-\" for the manifest address)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Do not read or write the image cache")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity (overrides the manifest when non-zero)")
	fs.IntVar(&opts.maxStack, "max-stack", 0, "Operand stack limit (overrides the manifest)")
	fs.IntVar(&opts.maxFrames, "max-frames", 0, "Call depth limit (overrides the manifest)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sloth [options] [file.sl]\n\n")
		fmt.Fprintf(stderr, "Runs a sloth program. Without a file or -e, runs the entry named in sloth.toml.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  sloth main.sl              # Run a file\n")
		fmt.Fprintf(stderr, "  sloth -e 'print 6 * 7'     # Run program text\n")
		fmt.Fprintf(stderr, "  sloth -disasm main.sl      # Show bytecode\n")
		fmt.Fprintf(stderr, "  sloth -emit main.slc main.sl && sloth -load main.slc\n")
		fmt.Fprintf(stderr, "  sloth -serve :4290         # Start the evaluation server\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if m == nil {
		m = manifest.Default(cwd)
	}

	configureLogging(m, opts.verbosity)

	vmOpts := vmOptions(m, opts, stdout, stderr)

	if opts.lsp {
		if err := server.NewLSP(vmOpts...).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	store, err := openCache(m, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if store != nil {
		defer store.Close()
	}

	if opts.serve != "" {
		addr := opts.serve
		if addr == "-" {
			addr = m.Server.Addr
		}
		srv := server.New(server.WithVMOptions(vmOpts...), server.WithCache(store))
		defer srv.Stop()
		if err := srv.ListenAndServe(addr); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}

	machine := vm.NewVM(vmOpts...)
	block, src, err := loadProgram(m, opts, fs.Args(), store, machine)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", compiler.RenderError(src, err))
		return 1
	}

	switch {
	case opts.emit != "":
		data, err := vm.MarshalImage(block, machine.Heap)
		if err == nil {
			err = os.WriteFile(opts.emit, data, 0644)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case opts.disasm:
		fmt.Fprint(stdout, block.Disassemble(machine.Heap))
		return 0
	}

	result, err := machine.Execute(block)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s\n", compiler.RenderError(src, err))
		return 1
	}
	if !result.IsNull() {
		fmt.Fprintln(stdout, machine.Display(result))
	}
	return 0
}

func configureLogging(m *manifest.Manifest, verbosity int) {
	if verbosity == 0 {
		verbosity = m.Log.Verbosity
	}
	var path *string
	if m.Log.File != "" {
		p := m.Log.File
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// vmOptions merges the manifest's [vm] table with command-line overrides.
func vmOptions(m *manifest.Manifest, opts options, stdout, stderr io.Writer) []vm.Option {
	maxStack, maxFrames := m.VM.MaxStack, m.VM.MaxFrames
	if opts.maxStack > 0 {
		maxStack = opts.maxStack
	}
	if opts.maxFrames > 0 {
		maxFrames = opts.maxFrames
	}
	vmOpts := []vm.Option{vm.WithOutput(stdout), vm.WithLimits(maxStack, maxFrames)}
	if opts.trace || m.VM.Trace {
		vmOpts = append(vmOpts, vm.WithTrace(stderr))
	}
	return vmOpts
}

func openCache(m *manifest.Manifest, opts options) (*cache.Store, error) {
	if opts.noCache || !m.CacheEnabled() {
		return nil, nil
	}
	return cache.Open(m.CachePath())
}

// loadProgram produces the main block from an image, program text, a file
// argument or the manifest entry, in that order of preference. It also
// returns the source text for error rendering.
func loadProgram(m *manifest.Manifest, opts options, args []string, store *cache.Store, machine *vm.VM) (*vm.CompiledBlock, string, error) {
	if opts.load != "" {
		data, err := os.ReadFile(opts.load)
		if err != nil {
			return nil, "", err
		}
		block, err := vm.UnmarshalImage(data, machine.Heap)
		return block, "", err
	}

	var src string
	switch {
	case opts.expr != "":
		src = opts.expr
	case len(args) > 1:
		return nil, "", fmt.Errorf("expected one program file, got %d", len(args))
	default:
		path := m.EntryPath()
		if len(args) == 1 {
			path = args[0]
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		src = string(data)
	}

	block, _, err := store.Compile(src, machine.Heap)
	return block, src, err
}
