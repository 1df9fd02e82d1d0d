// Package mcp exposes sync sessions as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rasha-hantash/confluence-mirror/steps/types"
	"github.com/rasha-hantash/confluence-mirror/syncer"
)

const Version = "0.1.0"

const (
	msgMissingParams = "Please pass both 'space' and 'type' parameters."
	msgInvalidType   = "Invalid 'type' parameter. Please use 'full' or 'incremental'."
	msgInternal      = "An error occurred while processing the request."
)

// Runner runs one sync session.
type Runner interface {
	Run(ctx context.Context, space string, mode syncer.Mode) (*types.Summary, error)
}

type SyncSpaceRequest struct {
	Space string `json:"space"` // Confluence space key
	Type  string `json:"type"`  // "full" or "incremental"
}

// Failure identifies a page that was not mirrored. Error detail is only logged.
type Failure struct {
	PageID string `json:"page_id"`
	Title  string `json:"title,omitempty"`
	Stage  string `json:"stage"`
}

type SyncSpaceResponse struct {
	Message   string    `json:"message"`
	RunID     string    `json:"run_id"`
	Container string    `json:"container"`
	Visited   int       `json:"visited"`
	Uploaded  int       `json:"uploaded"`
	Failed    int       `json:"failed"`
	Ambiguous int       `json:"ambiguous"`
	Failures  []Failure `json:"failures,omitempty"`
}

// NewServer creates an MCP server with the syncSpace tool.
func NewServer(runner Runner) *server.MCPServer {
	s := server.NewMCPServer(
		"Confluence Mirror MCP",
		Version,
		server.WithToolCapabilities(false),
	)

	syncTool := mcp.NewTool("syncSpace",
		mcp.WithDescription("Mirror a Confluence space into blob storage, either the whole page tree or only pages modified yesterday"),
		mcp.WithString("space",
			mcp.Required(),
			mcp.Description("The Confluence space key, e.g. 'SIA'"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Either 'full' or 'incremental'"),
			mcp.Enum(string(syncer.ModeFull), string(syncer.ModeIncremental)),
		),
	)
	s.AddTool(syncTool, mcp.NewTypedToolHandler(syncSpaceHandler(runner)))

	return s
}

func syncSpaceHandler(runner Runner) func(ctx context.Context, request mcp.CallToolRequest, args SyncSpaceRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest, args SyncSpaceRequest) (*mcp.CallToolResult, error) {
		if args.Space == "" || args.Type == "" {
			return mcp.NewToolResultError(msgMissingParams), nil
		}
		mode, err := syncer.ParseMode(args.Type)
		if err != nil {
			return mcp.NewToolResultError(msgInvalidType), nil
		}

		summary, err := runner.Run(ctx, args.Space, mode)
		if err != nil {
			slog.Error("syncSpace failed",
				slog.String("space", args.Space),
				slog.String("type", args.Type),
				slog.Any("error", err))
			return mcp.NewToolResultError(msgInternal), nil
		}

		responseBytes, err := json.Marshal(newResponse(args.Space, mode, summary))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(responseBytes)), nil
	}
}

func newResponse(space string, mode syncer.Mode, s *types.Summary) SyncSpaceResponse {
	resp := SyncSpaceResponse{Message: fmt.Sprintf("Full sync completed for space: %s.", space)}
	if mode == syncer.ModeIncremental {
		resp.Message = fmt.Sprintf("Incremental sync completed for space: %s.", space)
	}
	if s == nil {
		return resp
	}
	resp.RunID = s.RunID
	resp.Container = s.Container
	resp.Visited = s.Visited
	resp.Uploaded = s.Uploaded
	resp.Failed = s.Failed
	resp.Ambiguous = s.Ambiguous
	for _, f := range s.Failures() {
		resp.Failures = append(resp.Failures, Failure{PageID: f.PageID, Title: f.Title, Stage: string(f.Stage)})
	}
	return resp
}
