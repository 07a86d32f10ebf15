package mcp

import (
	"testing"
)

// TestNewMCPServer tests server creation
func TestNewMCPServer(t *testing.T) {
	mock := NewMockUISpyApp()
	server := NewMCPServer(mock)

	if server == nil {
		t.Fatal("NewMCPServer should not return nil")
	}
	if server.app == nil {
		t.Error("server.app should not be nil")
	}
	if server.server == nil {
		t.Error("server.server (underlying MCP server) should not be nil")
	}
	if !mock.WasMethodCalled("GetAppVersion") {
		t.Error("GetAppVersion should be called during server creation")
	}
}

func TestMCPServer_IsRunning(t *testing.T) {
	server := NewMCPServer(NewMockUISpyApp())
	if server.IsRunning() {
		t.Error("Server should not be running initially")
	}
}

func TestMCPServer_Stop(t *testing.T) {
	server := NewMCPServer(NewMockUISpyApp())

	// Stop should not panic even when not running
	server.Stop()

	if server.IsRunning() {
		t.Error("Server should not be running after Stop")
	}
}

func TestMockUISpyApp_Interface(t *testing.T) {
	var _ UISpyApp = (*MockUISpyApp)(nil)
}

func TestMockUISpyApp_RecordsCalls(t *testing.T) {
	mock := NewMockUISpyApp()

	mock.ParseQPath("/Text='OK'")
	mock.GetAppVersion()

	calls := mock.GetCalls()
	if len(calls) != 2 {
		t.Fatalf("Expected 2 calls, got %d", len(calls))
	}
	if calls[0].Method != "ParseQPath" || calls[0].Args[0] != "/Text='OK'" {
		t.Errorf("Unexpected first call: %+v", calls[0])
	}

	mock.ResetCalls()
	if len(mock.GetCalls()) != 0 {
		t.Error("ResetCalls should clear recorded calls")
	}
}

func TestParseHashcode(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"41a2b3c", 0x41a2b3c, false},
		{"0x41a2b3c", 0x41a2b3c, false},
		{" ff ", 0xff, false},
		{"xyz", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseHashcode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHashcode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHashcode(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}

func TestDeviceFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"uispy://devices/emulator-5554/windows", "emulator-5554", false},
		{"uispy://devices/192.168.1.2:5555/activities", "192.168.1.2:5555", false},
		{"uispy://devices//windows", "", true},
		{"uispy://devices", "", true},
	}
	for _, tt := range tests {
		got, err := deviceFromURI(tt.uri)
		if (err != nil) != tt.wantErr {
			t.Errorf("deviceFromURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("deviceFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}
