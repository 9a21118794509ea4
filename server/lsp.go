package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/sloth/compiler"
	"github.com/chazu/sloth/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "sloth-lsp"

var lspLog = commonlog.GetLogger("sloth.lsp")

// LspServer publishes compiler diagnostics and answers hover, definition
// and completion requests for open sloth documents.
type LspServer struct {
	worker *VMWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. Compilation runs on a VMWorker built
// with opts.
func NewLSP(opts ...vm.Option) *LspServer {
	s := &LspServer{
		worker:  NewVMWorker(opts...),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,
		TextDocumentDidSave:   s.textDocumentDidSave,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(true)},
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) setDoc(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) doc(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.setDoc(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDoc(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	uri := params.TextDocument.URI
	if params.Text != nil {
		s.setDoc(uri, *params.Text)
	}
	if text, ok := s.doc(uri); ok {
		s.publishDiagnostics(ctx, uri, text)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.doc(uri)
	if !ok {
		return nil, nil
	}
	if loc := definition(uri, text, params.Position); loc != nil {
		return *loc, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.doc(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return complete(text, params.Position), nil
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics, err := s.diagnose(text)
	if err != nil {
		lspLog.Errorf("%s: %s", uri, err)
		return
	}
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text on the worker and converts the first error, if
// any, to an LSP diagnostic.
func (s *LspServer) diagnose(text string) ([]protocol.Diagnostic, error) {
	result, err := s.worker.Do(func(v *vm.VM) interface{} {
		_, err := compiler.CompileSource(text, v)
		return err
	})
	if err != nil {
		return nil, err
	}
	diagnostics := []protocol.Diagnostic{}
	compileErr, _ := result.(error)
	if compileErr == nil {
		return diagnostics, nil
	}
	d, ok := compiler.DiagnosticOf(compileErr)
	if !ok {
		return nil, compileErr
	}

	length := 1
	if ce, ok := compileErr.(*compiler.CheckError); ok && ce.Name != "" {
		length = utf8.RuneCountInString(ce.Name)
	}
	start := lspPosition(d.Pos)
	end := start
	end.Character += protocol.UInteger(length)

	severity := protocol.DiagnosticSeverityError
	source := lspName
	return append(diagnostics, protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Source:   &source,
		Message:  fmt.Sprintf("%s error: %s", d.Stage, d.Msg),
	}), nil
}

// --- Checker-backed queries ---

// checkDoc parses and checks text. It returns nil if either stage fails.
func checkDoc(text string) *compiler.CheckResult {
	prog, err := compiler.Parse(text)
	if err != nil {
		return nil
	}
	res, err := compiler.Check(prog)
	if err != nil {
		return nil
	}
	return res
}

func hover(text string, pos protocol.Position) *protocol.Hover {
	word := extractWord(text, pos)
	if word == "" {
		return nil
	}
	res := checkDoc(text)
	if res == nil {
		return nil
	}
	sym, ok := res.Lookup(word, sourcePosition(text, pos))
	if !ok {
		return nil
	}

	kind := "local"
	if sym.Depth == 0 {
		kind = "top-level"
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("```sloth\n%s: %s\n```\n%s, declared at line %d", sym.Name, sym.Type, kind, sym.Span.Start.Line),
		},
	}
}

func definition(uri protocol.DocumentUri, text string, pos protocol.Position) *protocol.Location {
	word := extractWord(text, pos)
	if word == "" {
		return nil
	}
	res := checkDoc(text)
	if res == nil {
		return nil
	}
	sym, ok := res.Lookup(word, sourcePosition(text, pos))
	if !ok {
		return nil
	}
	return &protocol.Location{
		URI:   uri,
		Range: protocol.Range{Start: lspPosition(sym.Span.Start), End: lspPosition(sym.Span.End)},
	}
}

func complete(text string, pos protocol.Position) []protocol.CompletionItem {
	prefix := extractPrefix(text, pos)
	if prefix == "" {
		return nil
	}
	var items []protocol.CompletionItem

	// The partial word is usually undeclared, so check the text without it.
	at := sourcePosition(text, pos)
	at.Offset -= len(prefix)
	trimmed := text[:at.Offset] + text[at.Offset+len(prefix):]
	if res := checkDoc(trimmed); res != nil {
		seen := make(map[string]bool)
		for _, d := range res.Defs {
			if seen[d.Name] || d.Name == prefix || !strings.HasPrefix(d.Name, prefix) {
				continue
			}
			sym, ok := res.Lookup(d.Name, at)
			if !ok {
				continue
			}
			seen[d.Name] = true
			kind := protocol.CompletionItemKindVariable
			if sym.Type == compiler.TypeFn {
				kind = protocol.CompletionItemKindFunction
			}
			detail := sym.Type.String()
			name := sym.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	for _, word := range compiler.Keywords() {
		if word == prefix || !strings.HasPrefix(word, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		w := word
		items = append(items, protocol.CompletionItem{Label: w, Kind: &kind, InsertText: &w})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// --- Position conversion ---

// lspPosition converts a 1-based source position to a 0-based LSP one.
func lspPosition(p compiler.Position) protocol.Position {
	line, col := p.Line-1, p.Column-1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

// sourcePosition converts an LSP position in text to a source position
// with a byte offset. Characters are counted as runes.
func sourcePosition(text string, pos protocol.Position) compiler.Position {
	offset := 0
	lines := strings.SplitAfter(text, "\n")
	for i := 0; i < int(pos.Line) && i < len(lines); i++ {
		offset += len(lines[i])
	}
	if int(pos.Line) < len(lines) {
		line := strings.TrimSuffix(lines[pos.Line], "\n")
		i := 0
		for n := 0; n < int(pos.Character) && i < len(line); n++ {
			_, size := utf8.DecodeRuneInString(line[i:])
			i += size
		}
		offset += i
	}
	return compiler.Position{Offset: offset, Line: int(pos.Line) + 1, Column: int(pos.Character) + 1}
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// lineRunes returns the runes of line pos.Line and the cursor column
// clamped to it.
func lineRunes(text string, pos protocol.Position) ([]rune, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil, 0, false
	}
	line := []rune(lines[pos.Line])
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}
	return line, col, true
}

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}
	return string(line[start:col])
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineRunes(text, pos)
	if !ok {
		return ""
	}
	start := col
	for start > 0 && isIdentRune(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentRune(line[end]) {
		end++
	}
	return string(line[start:end])
}

func boolPtr(b bool) *bool {
	return &b
}
