// ABOUTME: Thread-safe registry of callable tools exposed over MCP.
// ABOUTME: Manages pack registration, collision detection, and public enumeration.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/sei-mcp-gateway/internal/schema"
)

// ErrToolCollision indicates a tool name already exists.
var ErrToolCollision = errors.New("tool name collision")

// ErrInvalidTool indicates a tool is missing its name or handler.
var ErrInvalidTool = errors.New("invalid tool")

// Handler executes a tool. args is the raw JSON arguments object (never empty).
// The returned value is encoded as the JSON-RPC result.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is a named, schema-described callable.
type Tool struct {
	Name        string
	Description string
	InputSchema *schema.Schema
	Handler     Handler
}

// Pack is a group of tools registered together.
type Pack struct {
	ID    string
	Tools []*Tool
}

// PackInfo contains public information about a registered pack.
type PackInfo struct {
	ID        string
	ToolNames []string
}

type entry struct {
	tool   *Tool
	packID string
}

// Registry maintains the set of tools and whether the tool runtime is ready.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*entry
	ready  bool
	logger *slog.Logger
}

// NewRegistry creates a new Registry instance. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:  make(map[string]*entry),
		logger: logger,
	}
}

// Register adds a single tool outside of any pack.
func (r *Registry) Register(tool *Tool) error {
	return r.RegisterPack(&Pack{ID: "", Tools: []*Tool{tool}})
}

// RegisterPack validates and stores all tools of a pack.
// Nothing is registered if any tool is invalid or collides with an existing name.
func (r *Registry) RegisterPack(pack *Pack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(pack.Tools))
	for _, tool := range pack.Tools {
		if tool == nil || tool.Name == "" || tool.Handler == nil {
			return fmt.Errorf("%w: tools need a name and a handler (pack '%s')", ErrInvalidTool, pack.ID)
		}
		if existing, exists := r.tools[tool.Name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered by pack '%s'",
				ErrToolCollision, tool.Name, existing.packID)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("%w: tool '%s' appears twice in pack '%s'",
				ErrToolCollision, tool.Name, pack.ID)
		}
		seen[tool.Name] = struct{}{}
	}

	for _, tool := range pack.Tools {
		r.tools[tool.Name] = &entry{tool: tool, packID: pack.ID}
	}

	r.logger.Info("tool pack registered",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
		"total_tools", len(r.tools),
	)
	return nil
}

// Unregister removes a tool by name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.tool, true
}

// ListTools returns every registered tool sorted by name.
func (r *Registry) ListTools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, e := range r.tools {
		tools = append(tools, e.tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// ListPacks returns the registered packs with their tool names, sorted by ID.
func (r *Registry) ListPacks() []PackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPack := make(map[string][]string)
	for name, e := range r.tools {
		byPack[e.packID] = append(byPack[e.packID], name)
	}

	packs := make([]PackInfo, 0, len(byPack))
	for id, names := range byPack {
		sort.Strings(names)
		packs = append(packs, PackInfo{ID: id, ToolNames: names})
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].ID < packs[j].ID })
	return packs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// MarkReady signals that tool registration has finished.
func (r *Registry) MarkReady() {
	r.mu.Lock()
	r.ready = true
	count := len(r.tools)
	r.mu.Unlock()

	r.logger.Info("tool registry ready", "total_tools", count)
}

// Ready reports whether MarkReady has been called and Close has not.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Close clears the registry and marks it not ready.
// This should be called during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.tools)
	r.tools = make(map[string]*entry)
	r.ready = false

	r.logger.Info("registry closed", "tools_cleared", count)
}
