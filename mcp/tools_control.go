package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"AndroidUISpy/pkg/qpath"

	"github.com/mark3labs/mcp-go/mcp"
)

// registerControlTools registers QPath and control lookup tools
func (s *MCPServer) registerControlTools() {
	s.server.AddTool(
		mcp.NewTool("qpath_parse",
			mcp.WithDescription("Parse a QPath such as `/Type='Button' && Text~='OK.*'` and return its canonical form and locators. Does not touch a device."),
			mcp.WithString("qpath",
				mcp.Required(),
				mcp.Description("QPath text; the first character is the separator"),
			),
		),
		s.handleQPathParse,
	)

	s.server.AddTool(
		mcp.NewTool("control_locate",
			mcp.WithDescription("Locate the single control matching a QPath in the UI hierarchy of a device"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
			mcp.WithString("qpath",
				mcp.Required(),
				mcp.Description("QPath of the control"),
			),
			mcp.WithString("window",
				mcp.Description("Window of the control tree to search (default: first window)"),
			),
			mcp.WithString("root",
				mcp.Description("Hashcode (hex) of the control to search from (default: window root)"),
			),
			mcp.WithString("target",
				mcp.Description("Hashcode (hex) of the expected control; picks it by Instance when the QPath is ambiguous"),
			),
			mcp.WithBoolean("diagnose",
				mcp.Description("Report which locator failed when nothing matches"),
			),
		),
		s.handleControlLocate,
	)

	s.server.AddTool(
		mcp.NewTool("control_qpath",
			mcp.WithDescription("Generate a QPath that uniquely identifies a control"),
			mcp.WithString("device_id",
				mcp.Description("Device ID (optional when one device is connected)"),
			),
			mcp.WithString("hashcode",
				mcp.Required(),
				mcp.Description("Hashcode (hex) of the control"),
			),
		),
		s.handleControlQPath,
	)
}

func (s *MCPServer) handleQPathParse(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	text := stringArg(args, "qpath")
	if text == "" {
		return nil, fmt.Errorf("qpath is required")
	}

	info, err := s.app.ParseQPath(text)
	if err != nil {
		return nil, fmt.Errorf("invalid qpath: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Canonical: %s\nSeparator: %s\n", info.Canonical, info.Separator)
	for i, l := range info.Locators {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, l)
	}
	return jsonResult(sb.String(), info), nil
}

func (s *MCPServer) handleControlLocate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	req := LocateRequest{
		QPath:    stringArg(args, "qpath"),
		Window:   stringArg(args, "window"),
		Diagnose: boolArg(args, "diagnose"),
	}
	if req.QPath == "" {
		return nil, fmt.Errorf("qpath is required")
	}
	var err error
	if req.Root, err = hashcodeArg(args, "root"); err != nil {
		return nil, err
	}
	if req.Target, err = hashcodeArg(args, "target"); err != nil {
		return nil, err
	}

	match, err := s.app.LocateControl(ctx, stringArg(args, "device_id"), req)
	if err != nil {
		return locateFailure(err)
	}

	result := fmt.Sprintf("Found control %s in window %s\nQPath: %s", match.Hashcode, match.Window, match.QPath)
	return jsonResult(result, match), nil
}

// locateFailure reports lookup misses as tool errors so the client can
// adjust the QPath. Other failures stay protocol errors.
func locateFailure(err error) (*mcp.CallToolResult, error) {
	var notFound *qpath.ControlNotFoundError
	if errors.As(err, &notFound) {
		text := err.Error()
		if notFound.FailedAt >= 0 && notFound.QPath != nil && notFound.FailedAt < notFound.QPath.Len() {
			text += fmt.Sprintf("\nFirst failing locator: %s", notFound.QPath.Locator(notFound.FailedAt))
		}
		return mcp.NewToolResultError(text), nil
	}
	var ambiguous *qpath.AmbiguousControlError
	if errors.As(err, &ambiguous) {
		return mcp.NewToolResultError(fmt.Sprintf("%s\nAdd Instance=N or pass target to pick one of %d controls", err, len(ambiguous.Candidates))), nil
	}
	return nil, fmt.Errorf("failed to locate control: %w", err)
}

func (s *MCPServer) handleControlQPath(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	hashcode, err := hashcodeArg(args, "hashcode")
	if err != nil {
		return nil, err
	}
	if hashcode == 0 {
		return nil, fmt.Errorf("hashcode is required")
	}

	match, err := s.app.GenerateQPath(ctx, stringArg(args, "device_id"), hashcode)
	if err != nil {
		return nil, fmt.Errorf("failed to generate qpath: %w", err)
	}
	return jsonResult(fmt.Sprintf("QPath: %s", match.QPath), match), nil
}
