// Package mcp provides an MCP (Model Context Protocol) server adapter for Quill.
// It enables AI assistants like Claude to search and manage the semantic index
// of a Roam graph.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// ErrMissingSyncService is returned when the sync service is not provided.
var ErrMissingSyncService = errors.New("mcp: sync service is required")
