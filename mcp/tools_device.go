package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerDeviceTools registers device and window state tools
func (s *MCPServer) registerDeviceTools() {
	s.server.AddTool(
		mcp.NewTool("device_list",
			mcp.WithDescription("List all connected Android devices"),
		),
		s.handleDeviceList,
	)
}

func (s *MCPServer) registerWindowTools() {
	s.server.AddTool(
		mcp.NewTool("window_list",
			mcp.WithDescription("List the windows of a device from `dumpsys window`, including position, size, package and popup flag"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
			mcp.WithBoolean("refresh",
				mcp.Description("Dump the window state again instead of reusing the last dump"),
			),
		),
		s.handleWindowList,
	)

	s.server.AddTool(
		mcp.NewTool("window_focus",
			mcp.WithDescription("Get the focused window and the input target window of a device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
		),
		s.handleWindowFocus,
	)

	s.server.AddTool(
		mcp.NewTool("activity_list",
			mcp.WithDescription("List the activities of a device in stack order from `dumpsys activity activities`"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
			mcp.WithBoolean("refresh",
				mcp.Description("Dump the activity state again instead of reusing the last dump"),
			),
		),
		s.handleActivityList,
	)

	s.server.AddTool(
		mcp.NewTool("window_process",
			mcp.WithDescription("Resolve the process name hosting a window"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
			mcp.WithString("window",
				mcp.Required(),
				mcp.Description("Window hashcode (hex) or title"),
			),
		),
		s.handleWindowProcess,
	)
}

// Tool handlers

func (s *MCPServer) handleDeviceList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	devices, err := s.app.GetDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	if len(devices) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No devices connected"),
			},
		}, nil
	}

	result := fmt.Sprintf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		connType := ""
		if d.Type == "wireless" {
			connType = " [wireless]"
		}
		result += fmt.Sprintf("%d. %s%s\n   Model: %s, State: %s\n", i+1, d.ID, connType, d.Model, d.State)
	}
	return jsonResult(result, devices), nil
}

func (s *MCPServer) handleWindowList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	deviceID := stringArg(args, "device_id")

	state, err := s.app.WindowState(ctx, deviceID, boolArg(args, "refresh"))
	if err != nil {
		return nil, fmt.Errorf("failed to get window state: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d window(s), screen %dx%d\n\n", len(state.Windows), state.ScreenWidth, state.ScreenHeight)
	for _, w := range state.Windows {
		fmt.Fprintf(&sb, "%s %s", w.Hashcode, w.Title)
		if w.HasPosition {
			fmt.Fprintf(&sb, " (%d,%d %dx%d)", w.X, w.Y, w.Width, w.Height)
		}
		var flags []string
		if w.Focused {
			flags = append(flags, "focused")
		}
		if w.Popup {
			flags = append(flags, "popup")
		}
		if w.Attached != "" {
			flags = append(flags, "attached to "+w.Attached)
		}
		if len(flags) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(flags, ", "))
		}
		sb.WriteString("\n")
	}
	return jsonResult(sb.String(), state), nil
}

func (s *MCPServer) handleWindowFocus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	state, err := s.app.WindowState(ctx, stringArg(args, "device_id"), true)
	if err != nil {
		return nil, fmt.Errorf("failed to get window state: %w", err)
	}

	result := "Current focus: none\n"
	if state.CurrentFocus != nil {
		result = fmt.Sprintf("Current focus: %s %s\n", state.CurrentFocus.Hashcode, state.CurrentFocus.Title)
	}
	if state.InputTarget != nil {
		result += fmt.Sprintf("Input target: %s %s\n", state.InputTarget.Hashcode, state.InputTarget.Title)
	}
	return jsonResult(result, map[string]interface{}{
		"currentFocus": state.CurrentFocus,
		"inputTarget":  state.InputTarget,
	}), nil
}

func (s *MCPServer) handleActivityList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	activities, err := s.app.ActivityList(ctx, stringArg(args, "device_id"), boolArg(args, "refresh"))
	if err != nil {
		return nil, fmt.Errorf("failed to get activities: %w", err)
	}

	if len(activities) == 0 {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent("No activities found"),
			},
		}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d activit(ies):\n\n", len(activities))
	for _, a := range activities {
		fmt.Fprintf(&sb, "stack %d task %d #%d %s", a.StackID, a.TaskID, a.Index, a.Name)
		if a.State != "" {
			fmt.Fprintf(&sb, " (%s)", a.State)
		}
		if a.ProcessName != "" {
			fmt.Fprintf(&sb, " process=%s", a.ProcessName)
		}
		sb.WriteString("\n")
	}
	return jsonResult(sb.String(), activities), nil
}

func (s *MCPServer) handleWindowProcess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	window := stringArg(args, "window")
	if window == "" {
		return nil, fmt.Errorf("window is required")
	}

	proc, err := s.app.WindowProcess(ctx, stringArg(args, "device_id"), window)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve process: %w", err)
	}

	result := fmt.Sprintf("Window %s runs in process %s", window, proc.Process)
	if proc.Cached {
		result += " (cached)"
	}
	return jsonResult(result, proc), nil
}
