package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleDevicesResource handles the uispy://devices resource
func (s *MCPServer) handleDevicesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	devices, err := s.app.GetDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	return jsonResource(request.Params.URI, devices)
}

// handleWindowsResource handles the uispy://devices/{deviceId}/windows resource template
func (s *MCPServer) handleWindowsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deviceID, err := deviceFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	state, err := s.app.WindowState(ctx, deviceID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get window state: %w", err)
	}
	return jsonResource(request.Params.URI, state)
}

// handleActivitiesResource handles the uispy://devices/{deviceId}/activities resource template
func (s *MCPServer) handleActivitiesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	deviceID, err := deviceFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	activities, err := s.app.ActivityList(ctx, deviceID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}
	return jsonResource(request.Params.URI, activities)
}

// deviceFromURI extracts the device ID from uispy://devices/{deviceId}/...
func deviceFromURI(uri string) (string, error) {
	parts := strings.Split(uri, "/")
	if len(parts) < 5 || parts[2] != "devices" || parts[3] == "" {
		return "", fmt.Errorf("invalid URI format: %s", uri)
	}
	return parts[3], nil
}
