// Package mcpserver exposes read-only tally tools to LLM clients over MCP
// stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/cardservice"
	"github.com/starford/tally/internal/models"
)

const cardFormatURI = "tally://card-format"

// Server wraps the MCP server with tally tools.
type Server struct {
	mcp *server.MCPServer
	svc *cardservice.Service
}

// New creates an MCP server with all tally tools registered.
func New(svc *cardservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tally",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List cards newest first, optionally filtered by type and side."),
		mcp.WithString("type", mcp.Description("person or organization (empty for all)")),
		mcp.WithString("side", mcp.Description("good or bad (empty for all)")),
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("get_card",
		mcp.WithDescription("Get one card with its like and dislike counts."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Card ID")),
	), s.getCard)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Dashboard aggregates: totals, breakdowns by type and side, leaderboards."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("check_consistency",
		mcp.WithDescription("List cards whose like/dislike counters disagree with the recorded votes."),
	), s.checkConsistency)

	s.mcp.AddTool(mcp.NewTool("get_card_format",
		mcp.WithDescription("Returns the YAML card file format accepted by the importer."),
	), s.getCardFormat)

	s.mcp.AddResource(
		mcp.NewResource(cardFormatURI, "Card File Format",
			mcp.WithResourceDescription("YAML format of card files loaded by the importer."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCardFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cards, err := s.svc.ListCards(ctx, models.CardFilter{
		Type: req.GetString("type", ""),
		Side: req.GetString("side", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cards)
}

func (s *Server) getCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	card, err := s.svc.GetCard(ctx, int64(id))
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("card not found: %d", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(card)
}

func (s *Server) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) checkConsistency(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	drift, err := s.svc.CheckConsistency(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(drift) == 0 {
		return mcp.NewToolResultText("all counters match the vote ledger"), nil
	}
	return jsonResult(drift)
}

func (s *Server) getCardFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CardFormatContract), nil
}

func (s *Server) readCardFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      cardFormatURI,
			MIMEType: "text/markdown",
			Text:     CardFormatContract,
		},
	}, nil
}
