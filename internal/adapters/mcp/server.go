// Package mcpadapter exposes the document use cases as MCP tools.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
)

const (
	serverName    = "document-qa"
	serverVersion = "1.0.0"
)

type Server struct {
	documents  ports.DocumentManager
	summarizer ports.DocumentSummarizer
	query      ports.DocumentQueryService
	mcp        *server.MCPServer
}

func NewServer(
	documents ports.DocumentManager,
	summarizer ports.DocumentSummarizer,
	query ports.DocumentQueryService,
) *Server {
	s := &Server{
		documents:  documents,
		summarizer: summarizer,
		query:      query,
		mcp:        server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get the metadata record and processing status of an uploaded document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by upload.")),
	), s.getDocument)

	s.mcp.AddTool(mcp.NewTool("summarize_document",
		mcp.WithDescription("Generate a summary of a processed document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by upload.")),
	), s.summarizeDocument)

	s.mcp.AddTool(mcp.NewTool("ask_document",
		mcp.WithDescription("Answer a question using only the content of one document."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by upload.")),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question about the document.")),
	), s.askDocument)

	s.mcp.AddTool(mcp.NewTool("search_document",
		mcp.WithDescription("Return the chunks of one document most relevant to a query."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document id returned by upload.")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text.")),
		mcp.WithNumber("top_k", mcp.Description("Number of chunks to return, 1 to 20. Defaults to 5.")),
	), s.searchDocument)

	return s
}

// MCPServer returns the underlying server for transports other than stdio.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) getDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return toolError("get_document", err), nil
	}
	return jsonResult(doc)
}

func (s *Server) summarizeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := s.summarizer.Summarize(ctx, id)
	if err != nil {
		return toolError("summarize_document", err), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) askDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.query.Answer(ctx, id, question)
	if err != nil {
		return toolError("ask_document", err), nil
	}

	var b strings.Builder
	b.WriteString(answer.Text)
	if len(answer.Sources) > 0 {
		b.WriteString("\n\nSources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(&b, "\n- %s (score %.3f)", sourceLabel(src.Chunk), src.Score)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

type searchHit struct {
	Text     string  `json:"text"`
	Score    float64 `json:"relevance_score"`
	Position string  `json:"position"`
	Index    int     `json:"chunk_index"`
}

func (s *Server) searchDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results, err := s.query.Search(ctx, id, query, req.GetInt("top_k", 0))
	if err != nil {
		return toolError("search_document", err), nil
	}
	hits := make([]searchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, searchHit{
			Text:     r.Chunk.Text,
			Score:    r.Score,
			Position: sourceLabel(r.Chunk),
			Index:    r.Chunk.Index,
		})
	}
	return jsonResult(hits)
}

func sourceLabel(c domain.Chunk) string {
	if label := c.Position.Label(); label != "" {
		return label
	}
	return fmt.Sprintf("chunk %d", c.Index+1)
}

func toolError(tool string, err error) *mcp.CallToolResult {
	kind := domain.KindOf(err)
	if kind == "internal" {
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(kind + ": " + err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
