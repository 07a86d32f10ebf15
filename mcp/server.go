// Package mcp provides the MCP (Model Context Protocol) server of AndroidUISpy.
// It lets AI clients inspect windows, activities and controls of a device.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"AndroidUISpy/pkg/types"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Type aliases from shared types package
type (
	Device          = types.Device
	WindowInfo      = types.WindowInfo
	WindowStateInfo = types.WindowStateInfo
	ActivityInfo    = types.ActivityInfo
	WindowProcess   = types.WindowProcess
	ControlMatch    = types.ControlMatch
	QPathInfo       = types.QPathInfo
	LocateRequest   = types.LocateRequest
)

// UISpyApp is the application surface exposed over MCP.
type UISpyApp interface {
	GetDevices(ctx context.Context) ([]Device, error)
	WindowState(ctx context.Context, deviceID string, refresh bool) (WindowStateInfo, error)
	ActivityList(ctx context.Context, deviceID string, refresh bool) ([]ActivityInfo, error)
	WindowProcess(ctx context.Context, deviceID, window string) (WindowProcess, error)
	LocateControl(ctx context.Context, deviceID string, req LocateRequest) (ControlMatch, error)
	GenerateQPath(ctx context.Context, deviceID string, hashcode int64) (ControlMatch, error)
	ParseQPath(text string) (QPathInfo, error)
	GetAppVersion() string
}

// MCPServer wraps the MCP server with AndroidUISpy functionality
type MCPServer struct {
	app    UISpyApp
	server *server.MCPServer
	stdio  *server.StdioServer

	mu        sync.Mutex
	isRunning bool
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app UISpyApp) *MCPServer {
	s := &MCPServer{app: app}

	s.server = server.NewMCPServer(
		"AndroidUISpy",
		app.GetAppVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	s.registerTools()
	s.registerResources()
	return s
}

func (s *MCPServer) registerTools() {
	s.registerDeviceTools()
	s.registerWindowTools()
	s.registerControlTools()
}

func (s *MCPServer) registerResources() {
	s.server.AddResource(
		mcp.NewResource(
			"uispy://devices",
			"Connected Android devices",
			mcp.WithMIMEType("application/json"),
		),
		s.handleDevicesResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"uispy://devices/{deviceId}/windows",
			"Window state of a device",
		),
		s.handleWindowsResource,
	)

	s.server.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"uispy://devices/{deviceId}/activities",
			"Activity stacks of a device",
		),
		s.handleActivitiesResource,
	)
}

// Start starts the MCP server on stdio and blocks until it shuts down.
func (s *MCPServer) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("MCP server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	return s.run()
}

func (s *MCPServer) run() error {
	s.stdio = server.NewStdioServer(s.server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintln(os.Stderr, "[MCP] AndroidUISpy MCP Server started")
	err := s.stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "[MCP] Server error: %v\n", err)
	} else {
		err = nil
	}

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	return err
}

// Stop stops the MCP server
func (s *MCPServer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// the stdio server stops when stdin closes or the context is cancelled
	s.isRunning = false
}

// IsRunning returns whether the MCP server is running
func (s *MCPServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ==================== helpers ====================

func stringArg(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return strings.TrimSpace(v)
}

func boolArg(args map[string]interface{}, name string) bool {
	v, _ := args[name].(bool)
	return v
}

// hashcodeArg reads a hexadecimal control hashcode. JSON numbers are taken
// as already decoded values.
func hashcodeArg(args map[string]interface{}, name string) (int64, error) {
	switch v := args[name].(type) {
	case nil:
		return 0, nil
	case float64:
		return int64(v), nil
	case string:
		return ParseHashcode(v)
	default:
		return 0, fmt.Errorf("%s must be a hex string", name)
	}
}

// ParseHashcode parses a hexadecimal hashcode with or without 0x prefix.
// An empty string is 0.
func ParseHashcode(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hashcode %q", s)
	}
	return int64(h), nil
}

func jsonResult(summary string, v interface{}) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(summary),
			mcp.NewTextContent(fmt.Sprintf("\nJSON data:\n```json\n%s\n```", string(jsonData))),
		},
	}
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
