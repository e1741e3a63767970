package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jcdickinson/ferrisdoc/internal/markdown"
	"github.com/jcdickinson/ferrisdoc/internal/model"
)

//go:embed instructions.md
var instructions string

const resourceScheme = "rustdoc://"

// Store is the read side of the persisted documentation index.
type Store interface {
	Lookup(path string) ([]model.SymbolRecord, error)
	Children(module string) ([]model.SymbolRecord, error)
	Search(term string, limit int) ([]model.SymbolRecord, error)
	Find(kinds []model.DeclKind, pattern string, limit int) ([]model.SymbolRecord, error)
	ModuleDoc(path string) (*model.Doc, error)
}

type Server struct {
	mcpServer *server.MCPServer
	store     Store
}

func NewServer(store Store, version string) *Server {
	s := &Server{store: store}

	mcpServer := server.NewMCPServer(
		"ferrisdoc",
		version,
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("lookup_symbol",
			mcp.WithDescription("Return the documentation of a symbol by its fully qualified path, e.g. `crate::parser::Parser::new`. Returns Markdown."),
			mcp.WithString("path",
				mcp.Description("Fully qualified path with :: separators"),
				mcp.Required(),
			),
			mcp.WithString("section",
				mcp.Description("Optional section to return: fields, variants, implementations, implementors, required-methods or provided-methods"),
			),
		),
		s.handleLookup,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_module",
			mcp.WithDescription("List the symbols declared under a module path, depth first. Omit `module` to list the whole index."),
			mcp.WithString("module",
				mcp.Description("Module path, e.g. `crate::util`"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 200)"),
			),
		),
		s.handleListModule,
	)

	mcpServer.AddTool(
		mcp.NewTool("search_docs",
			mcp.WithDescription("Substring search over symbol names, paths and documentation text. Results carry resource URIs that can be read for the full documentation."),
			mcp.WithString("query",
				mcp.Description("Case-insensitive search text"),
				mcp.Required(),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 20)"),
			),
		),
		s.handleSearchDocs,
	)

	mcpServer.AddTool(
		mcp.NewTool("find_declarations",
			mcp.WithDescription("Find declarations by kind and a regular expression over their names, e.g. kinds `fn` and pattern `^new`. Results carry resource URIs."),
			mcp.WithString("kinds",
				mcp.Description("Kinds separated by `,` or `|`: mod, struct, enum, trait, fn, macro, const, static, type, impl, field, variant. Omit for every kind."),
			),
			mcp.WithString("pattern",
				mcp.Description("Regular expression matched against the declaration name. Omit to match every name."),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default 50)"),
			),
		),
		s.handleFindDeclarations,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			resourceScheme+"{path}",
			"Rust symbol documentation",
			mcp.WithTemplateDescription("Read the documentation of a symbol or module. Search results return these URIs."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

// summary is the compact form of a record returned by list and search tools.
type summary struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Signature string `json:"signature,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Location  string `json:"location"`
	URI       string `json:"uri"`
}

func summarize(recs []model.SymbolRecord, limit int) []summary {
	out := make([]summary, 0, min(len(recs), limit))
	for _, r := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, summary{
			Path:      r.Path(),
			Kind:      string(r.Declaration.Kind),
			Signature: r.Declaration.Signature,
			Summary:   r.Summary,
			Location:  fmt.Sprintf("%s:%d", r.File, r.Declaration.Line),
			URI:       resourceScheme + r.Path(),
		})
	}
	return out
}

func (s *Server) handleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	text, err := s.document(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if text == "" {
		return mcp.NewToolResultError(fmt.Sprintf("no symbol or module named %s", path)), nil
	}
	if section, _ := args["section"].(string); section != "" {
		sec, ok := markdown.Section(text, section)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s has no %s section", path, section)), nil
		}
		text = sec
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleListModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	module, _ := args["module"].(string)
	limit := 200
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	recs, err := s.store.Children(module)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(summarize(recs, limit), "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleSearchDocs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if query == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	limit := 20
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	recs, err := s.store.Search(query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(summarize(recs, limit), "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleFindDeclarations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	kindArg, _ := args["kinds"].(string)
	pattern, _ := args["pattern"].(string)
	if kindArg == "" && pattern == "" {
		return mcp.NewToolResultError("give at least one of kinds or pattern"), nil
	}
	kinds, err := model.ParseKinds(kindArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pattern: %v", err)), nil
	}
	limit := 50
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	recs, err := s.store.Find(kinds, pattern, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("find failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(summarize(recs, limit), "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	path := strings.TrimPrefix(uri, resourceScheme)
	if path == uri || path == "" {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}

	text, err := s.document(path)
	if err != nil {
		return nil, fmt.Errorf("getting doc: %w", err)
	}
	if text == "" {
		return nil, fmt.Errorf("no symbol or module named %s", path)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     text,
		},
	}, nil
}

// document renders the records stored for path, preceded by the module
// documentation when path names a module.
func (s *Server) document(path string) (string, error) {
	recs, err := s.store.Lookup(path)
	if err != nil {
		return "", err
	}
	members, err := s.store.Children(path)
	if err != nil {
		return "", err
	}
	doc, err := s.store.ModuleDoc(path)
	if err != nil {
		return "", err
	}
	return markdown.Document(path, doc, recs, members), nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}
