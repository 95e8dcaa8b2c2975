package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/flow"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const groupURIPrefix = "arbor://groups/"

// EvaluatedItem is one question of an evaluated page.
type EvaluatedItem struct {
	Identifier string   `json:"identifier" jsonschema_description:"Qualified answer key (group.identifier)"`
	Text       string   `json:"text" jsonschema_description:"Question prompt"`
	Type       string   `json:"type" jsonschema_description:"Question type"`
	Required   bool     `json:"required"`
	Options    []string `json:"options,omitempty" jsonschema_description:"Allowed values for choice questions"`
	Depth      int      `json:"depth"`
	Instance   int      `json:"instance" jsonschema_description:"Instance of a repeatable set, 0 otherwise"`
	Answer     any      `json:"answer,omitempty" jsonschema_description:"Current answer"`
}

// EvaluateResponse aligns with the OpenAPI schema of the HTTP adapter.
type EvaluateResponse struct {
	Items        []EvaluatedItem `json:"items" jsonschema_description:"Questions on the requested page"`
	Dependencies []string        `json:"dependencies" jsonschema_description:"Identifiers the logic depends on"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalItems   int             `json:"total_items"`
	Halted       bool            `json:"halted" jsonschema_description:"Evaluation stopped early on an end or stop flow rule"`
	IsLastPage   bool            `json:"is_last_page"`
	CanGoBack    bool            `json:"can_go_back"`
}

// GroupList is the output of list_groups.
type GroupList struct {
	Groups []string `json:"groups" jsonschema_description:"Ids of the available question groups"`
}

// Engine defines what the MCP server needs from arbor.
type Engine interface {
	ports.GroupLoader
	Evaluate(ctx context.Context, groupID string, answers domain.Answers, page int) (flow.Result, error)
}

// Server wraps the arbor Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("arbor-mcp", arbor.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and blocks until
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_groups
	listTool := mcp.NewTool("list_groups",
		mcp.WithDescription("List the ids of every question group."),
		mcp.WithOutputSchema[GroupList](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListGroups))

	// TOOL: evaluate
	evaluateTool := mcp.NewTool("evaluate",
		mcp.WithDescription("Evaluate the logic of a group against a set of answers and return one page of visible questions."),
		mcp.WithString("group_id", mcp.Required(), mcp.Description("The group to evaluate")),
		mcp.WithString("answers", mcp.Description("JSON object of answers keyed by group.identifier (optional)")),
		mcp.WithNumber("page", mcp.Description("1-based page number, clamped to the available range (optional)")),
		mcp.WithOutputSchema[EvaluateResponse](),
	)
	s.mcpServer.AddTool(evaluateTool, mcp.NewStructuredToolHandler(s.handleEvaluate))

	// TOOL: get_tree
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Render the logic tree of a group as an outline or a Mermaid flowchart."),
		mcp.WithString("group_id", mcp.Required(), mcp.Description("The group to render")),
		mcp.WithString("format", mcp.Enum("outline", "mermaid"), mcp.Description("Output format (default outline)")),
	), s.handleGetTree)

	// TOOL: get_group
	s.mcpServer.AddTool(mcp.NewTool("get_group",
		mcp.WithDescription("Get the full definition of a group: questions and logic tree."),
		mcp.WithString("group_id", mcp.Required(), mcp.Description("The group to load")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := s.groupJSON(ctx, request.GetString("group_id", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

func (s *Server) handleListGroups(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (GroupList, error) {
	ids, err := s.engine.ListGroups(ctx)
	if err != nil {
		return GroupList{}, fmt.Errorf("list groups failed: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return GroupList{Groups: ids}, nil
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (EvaluateResponse, error) {
	groupID, _ := args["group_id"].(string)
	if groupID == "" {
		return EvaluateResponse{}, errors.New("group_id is required")
	}

	answers := domain.Answers{}
	if raw, ok := args["answers"].(string); ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			s.logger.Warn("MCP Evaluate: answers rejected", "error", err)
			return EvaluateResponse{}, fmt.Errorf("answers must be a JSON object: %w", err)
		}
	}

	page := 1
	if p, ok := args["page"].(float64); ok && p >= 1 {
		page = int(p)
	}

	res, err := s.engine.Evaluate(ctx, groupID, answers, page)
	if err != nil {
		return EvaluateResponse{}, fmt.Errorf("evaluate failed: %w", err)
	}
	return toResponse(res), nil
}

func toResponse(res flow.Result) EvaluateResponse {
	out := EvaluateResponse{
		Items:        make([]EvaluatedItem, 0, len(res.Items)),
		Dependencies: res.Dependencies,
		Page:         res.Page,
		TotalPages:   res.TotalPages,
		TotalItems:   res.TotalItems,
		Halted:       res.Halted,
		IsLastPage:   res.IsLastPage,
		CanGoBack:    res.CanGoBack,
	}
	if out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	for _, item := range res.Items {
		var options []string
		for _, o := range item.Question.Options {
			options = append(options, o.Value)
		}
		out.Items = append(out.Items, EvaluatedItem{
			Identifier: item.Identifier.Qualified,
			Text:       item.Question.Text,
			Type:       string(item.Question.Type),
			Required:   item.Question.Required,
			Options:    options,
			Depth:      item.Depth,
			Instance:   item.Instance,
			Answer:     item.Answer,
		})
	}
	return out
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.engine.LoadGroup(ctx, request.GetString("group_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load group failed: %v", err)), nil
	}
	switch format := request.GetString("format", "outline"); format {
	case "mermaid":
		return mcp.NewToolResultText(graph.GenerateMermaid(g, nil)), nil
	case "outline", "":
		return mcp.NewToolResultText(graph.Outline(g, graph.Style{})), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown format %q", format)), nil
	}
}

func (s *Server) groupJSON(ctx context.Context, groupID string) (string, error) {
	g, err := s.engine.LoadGroup(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("load group failed: %w", err)
	}
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode group failed: %w", err)
	}
	return string(data), nil
}

func (s *Server) registerResources() {
	// EXPOSE: arbor://groups/{id}
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(groupURIPrefix+"{id}", "Question Group",
		mcp.WithTemplateDescription("Questions and logic tree of a group"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readGroup)
}

func (s *Server) readGroup(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	groupID := strings.TrimPrefix(uri, groupURIPrefix)
	if groupID == uri || groupID == "" {
		return nil, fmt.Errorf("unsupported resource %q", uri)
	}
	text, err := s.groupJSON(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}
