package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ninelife/gameserver/game/mapdata"
	"github.com/ninelife/gameserver/game/session"
)

// Server exposes read-only inspection tools over MCP. Gameplay itself stays
// on the websocket protocol; these tools let an agent observe rooms and maps.
type Server struct {
	registry  *session.Manager
	maps      *mapdata.Manager
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server bound to the room registry and map catalog.
func NewServer(registry *session.Manager, maps *mapdata.Manager) *Server {
	s := &Server{
		registry: registry,
		maps:     maps,
	}
	s.initMCPServer()
	return s
}

func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Nine Life Game Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Nine Life Game Server - MCP Interface

Read-only inspection tools for the multiplayer board game server.
Gameplay happens over the websocket protocol; these tools observe it.

AVAILABLE TOOLS:
- list_rooms: List all active rooms with their lobby state
- room_info: Get details of a specific room
- list_maps: List available game maps
- server_stats: Get room counts and server status`),
	)

	s.registerTools()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all active rooms with players, status and map",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListRooms)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "room_info",
		Description: "Get the lobby state of a specific room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Six character room code",
				},
			},
			Required: []string{"room_id"},
		},
	}, s.handleRoomInfo)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_maps",
		Description: "List available game maps",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListMaps)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Get room counts and server status",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleServerStats)
}

// GetMCPServer returns the underlying MCP server for serving.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.registry.List())
}

func (s *Server) handleRoomInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	r, err := s.registry.Get(roomID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(r.Info())
}

func (s *Server) handleListMaps(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.maps.List())
}

func (s *Server) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := map[string]interface{}{
		"rooms": s.registry.Count(),
		"maps":  len(s.maps.List()),
	}
	return jsonResult(stats)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
