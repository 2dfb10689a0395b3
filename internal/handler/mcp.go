// MCP transport for the shim harness using the official MCP Go SDK.
// Exposes key system resolution and negotiation as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"drm-shim/internal/model"
	"drm-shim/internal/negotiation"
)

// === MCP Tool Input/Output Types ===

// ResolveKeySystemInput is the input schema for the resolve_key_system tool.
type ResolveKeySystemInput struct {
	KeySystems []string `json:"key_systems" jsonschema:"key system names in preference order,required"`
}

// ResolveKeySystemOutput lists the key systems the shim will actually request.
type ResolveKeySystemOutput struct {
	Requested []string `json:"requested"`
	Effective []string `json:"effective"`
}

// GenerateCandidatesInput is the input schema for the generate_candidates tool.
type GenerateCandidatesInput struct {
	Configurations []model.KeySystemConfiguration `json:"configurations,omitempty" jsonschema:"application configurations; the default template is used when empty"`
}

// GenerateCandidatesOutput is the fallback ladder, in the order it is tried.
type GenerateCandidatesOutput struct {
	Candidates []negotiation.Candidate `json:"candidates"`
}

// NegotiateInput is the input schema for the negotiate tool.
type NegotiateInput struct {
	KeySystem      string                         `json:"key_system" jsonschema:"requested key system,required"`
	Configurations []model.KeySystemConfiguration `json:"configurations,omitempty" jsonschema:"application configurations"`
}

// NewMCPServer creates an MCP server with the shim tools registered.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "drm-shim",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "DRM shim harness. Resolve key system names through the substitution " +
				"policy, inspect the robustness fallback ladder, and run a negotiation against the emulated device.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_key_system",
		Description: "Apply the key system substitution policy to a list of key system names.",
	}, h.mcpResolveKeySystem)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_candidates",
		Description: "List the fallback configurations tried after the initial capability check is rejected.",
	}, h.mcpGenerateCandidates)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "negotiate",
		Description: "Request key system access through the installed capability check.",
	}, h.mcpNegotiate)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpResolveKeySystem(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ResolveKeySystemInput,
) (*mcp.CallToolResult, ResolveKeySystemOutput, error) {
	if len(input.KeySystems) == 0 {
		return nil, ResolveKeySystemOutput{}, fmt.Errorf("key_systems is required")
	}
	return nil, ResolveKeySystemOutput{
		Requested: input.KeySystems,
		Effective: h.opts.Policy.ResolveAll(input.KeySystems),
	}, nil
}

func (h *Handler) mcpGenerateCandidates(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GenerateCandidatesInput,
) (*mcp.CallToolResult, GenerateCandidatesOutput, error) {
	return nil, GenerateCandidatesOutput{
		Candidates: negotiation.GenerateCandidates(input.Configurations),
	}, nil
}

func (h *Handler) mcpNegotiate(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input NegotiateInput,
) (*mcp.CallToolResult, NegotiateResponse, error) {
	if input.KeySystem == "" {
		return nil, NegotiateResponse{}, fmt.Errorf("key_system is required")
	}

	requested := []string{input.KeySystem}
	access, err := h.negotiate(ctx, requested, input.Configurations)
	if err != nil {
		return nil, NegotiateResponse{}, h.mcpError(err)
	}
	return nil, NegotiateResponse{
		Requested:     requested,
		KeySystem:     access.KeySystem,
		Configuration: access.Configuration,
	}, nil
}

// mcpError converts handler errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
