package mcp

import (
	"context"
	"errors"
	"sync"
)

// MockCall records a method call for verification
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockUISpyApp is a mock implementation of UISpyApp for testing
type MockUISpyApp struct {
	mu    sync.Mutex
	Calls []MockCall

	GetDevicesResult    []Device
	GetDevicesError     error
	WindowStateResult   WindowStateInfo
	WindowStateError    error
	ActivityListResult  []ActivityInfo
	ActivityListError   error
	WindowProcessResult WindowProcess
	WindowProcessError  error
	LocateControlResult ControlMatch
	LocateControlError  error
	GenerateQPathResult ControlMatch
	GenerateQPathError  error
	ParseQPathResult    QPathInfo
	ParseQPathError     error

	AppVersion string
}

// NewMockUISpyApp creates a new MockUISpyApp with sensible defaults
func NewMockUISpyApp() *MockUISpyApp {
	return &MockUISpyApp{
		Calls:              make([]MockCall, 0),
		AppVersion:         "1.0.0-test",
		GetDevicesResult:   []Device{},
		ActivityListResult: []ActivityInfo{},
	}
}

func (m *MockUISpyApp) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls
func (m *MockUISpyApp) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall{}, m.Calls...)
}

// ResetCalls clears all recorded calls
func (m *MockUISpyApp) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// WasMethodCalled checks if a method was called
func (m *MockUISpyApp) WasMethodCalled(method string) bool {
	return m.GetLastCallByMethod(method) != nil
}

// GetLastCallByMethod returns the last call to a specific method
func (m *MockUISpyApp) GetLastCallByMethod(method string) *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		if m.Calls[i].Method == method {
			c := m.Calls[i]
			return &c
		}
	}
	return nil
}

func (m *MockUISpyApp) GetDevices(ctx context.Context) ([]Device, error) {
	m.recordCall("GetDevices")
	return m.GetDevicesResult, m.GetDevicesError
}

func (m *MockUISpyApp) WindowState(ctx context.Context, deviceID string, refresh bool) (WindowStateInfo, error) {
	m.recordCall("WindowState", deviceID, refresh)
	return m.WindowStateResult, m.WindowStateError
}

func (m *MockUISpyApp) ActivityList(ctx context.Context, deviceID string, refresh bool) ([]ActivityInfo, error) {
	m.recordCall("ActivityList", deviceID, refresh)
	return m.ActivityListResult, m.ActivityListError
}

func (m *MockUISpyApp) WindowProcess(ctx context.Context, deviceID, window string) (WindowProcess, error) {
	m.recordCall("WindowProcess", deviceID, window)
	return m.WindowProcessResult, m.WindowProcessError
}

func (m *MockUISpyApp) LocateControl(ctx context.Context, deviceID string, req LocateRequest) (ControlMatch, error) {
	m.recordCall("LocateControl", deviceID, req)
	return m.LocateControlResult, m.LocateControlError
}

func (m *MockUISpyApp) GenerateQPath(ctx context.Context, deviceID string, hashcode int64) (ControlMatch, error) {
	m.recordCall("GenerateQPath", deviceID, hashcode)
	return m.GenerateQPathResult, m.GenerateQPathError
}

func (m *MockUISpyApp) ParseQPath(text string) (QPathInfo, error) {
	m.recordCall("ParseQPath", text)
	return m.ParseQPathResult, m.ParseQPathError
}

func (m *MockUISpyApp) GetAppVersion() string {
	m.recordCall("GetAppVersion")
	return m.AppVersion
}

// === Test Helper Functions ===

// SetupWithDevices configures mock with sample devices
func (m *MockUISpyApp) SetupWithDevices(devices ...Device) *MockUISpyApp {
	m.GetDevicesResult = devices
	return m
}

// SetupWithError configures a specific method to return an error
func (m *MockUISpyApp) SetupWithError(method string, err error) *MockUISpyApp {
	switch method {
	case "GetDevices":
		m.GetDevicesError = err
	case "WindowState":
		m.WindowStateError = err
	case "ActivityList":
		m.ActivityListError = err
	case "WindowProcess":
		m.WindowProcessError = err
	case "LocateControl":
		m.LocateControlError = err
	case "GenerateQPath":
		m.GenerateQPathError = err
	case "ParseQPath":
		m.ParseQPathError = err
	}
	return m
}

// Common test errors
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrWindowNotFound = errors.New("window not found")
	ErrTimeout        = errors.New("operation timed out")
)

// Sample test data factories

// SampleDevice returns a sample device for testing
func SampleDevice(id string) Device {
	return Device{
		ID:    id,
		State: "device",
		Model: "Pixel_6",
		Type:  "wired",
	}
}

// SampleWindowState returns a launcher with a popup dialog on top
func SampleWindowState() WindowStateInfo {
	launcher := WindowInfo{
		Hashcode: "41a2b3c", Title: "com.example.app/com.example.app.MainActivity",
		Package: "com.example.app", Width: 1080, Height: 2400, HasPosition: true,
	}
	dialog := WindowInfo{
		Hashcode: "5d6e7f8", Title: "com.example.app/com.example.app.MainActivity",
		Package: "com.example.app", X: 90, Y: 800, Width: 900, Height: 600, HasPosition: true,
		Attached: "41a2b3c", Popup: true, Focused: true,
	}
	return WindowStateInfo{
		Windows:      []WindowInfo{dialog, launcher},
		CurrentFocus: &dialog,
		InputTarget:  &dialog,
		ScreenWidth:  1080,
		ScreenHeight: 2400,
	}
}

// SampleActivities returns a resumed activity on top of a stopped one
func SampleActivities() []ActivityInfo {
	return []ActivityInfo{
		{StackID: 1, TaskID: 12, Index: 1, Hashcode: "a1b2c3d", Name: "com.example.app/.MainActivity",
			PackageName: "com.example.app", ProcessName: "com.example.app", State: "RESUMED"},
		{StackID: 0, TaskID: 3, Index: 0, Hashcode: "e4f5a6b", Name: "com.android.launcher3/.Launcher",
			PackageName: "com.android.launcher3", ProcessName: "com.android.launcher3", State: "STOPPED"},
	}
}
