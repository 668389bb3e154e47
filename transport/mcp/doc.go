// Package mcp provides a Model Context Protocol surface for the game server.
//
// The tools are read-only: an agent can list rooms, inspect a room's lobby
// state, browse the map catalog, and read server stats. Gameplay itself is
// not exposed here - moves travel over the websocket protocol, which keeps
// turn arbitration in one place.
//
// The server runs in two transport modes:
//   - Stdio: direct stdio communication for local MCP clients
//   - HTTP: the /mcp endpoint on the main HTTP server
package mcp
