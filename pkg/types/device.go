package types

// Device represents an Android device as listed by `adb devices -l`
type Device struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Model   string `json:"model"`
	Product string `json:"product,omitempty"`
	Type    string `json:"type"` // "wired" or "wireless"
}

// WindowInfo is the serialisable view of one window of a window dump
type WindowInfo struct {
	Hashcode    string `json:"hashcode"`
	Title       string `json:"title"`
	Package     string `json:"package,omitempty"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	HasPosition bool   `json:"hasPosition"`
	Attached    string `json:"attached,omitempty"`
	Popup       bool   `json:"popup"`
	Focused     bool   `json:"focused"`
}

// WindowStateInfo summarises a whole window dump
type WindowStateInfo struct {
	Windows      []WindowInfo `json:"windows"`
	CurrentFocus *WindowInfo  `json:"currentFocus,omitempty"`
	InputTarget  *WindowInfo  `json:"inputTarget,omitempty"`
	ScreenWidth  int          `json:"screenWidth"`
	ScreenHeight int          `json:"screenHeight"`
}

// ActivityInfo is the serialisable view of one activity record
type ActivityInfo struct {
	StackID     int    `json:"stackId"`
	TaskID      int    `json:"taskId"`
	Index       int    `json:"index"`
	Hashcode    string `json:"hashcode"`
	Name        string `json:"name"`
	PackageName string `json:"packageName,omitempty"`
	ProcessName string `json:"processName,omitempty"`
	State       string `json:"state,omitempty"`
}

// WindowProcess is the result of resolving the process behind a window
type WindowProcess struct {
	Window  string `json:"window"`
	Process string `json:"process"`
	Cached  bool   `json:"cached"`
}

// ControlMatch is the result of locating a control with a QPath
type ControlMatch struct {
	Window   string            `json:"window"`
	Hashcode string            `json:"hashcode"`
	QPath    string            `json:"qpath"`
	Props    map[string]string `json:"props,omitempty"`
}

// QPathInfo describes a parsed QPath
type QPathInfo struct {
	Source    string   `json:"source"`
	Separator string   `json:"separator"`
	Canonical string   `json:"canonical"`
	Locators  []string `json:"locators"`
}

// SnapshotInfo describes a stored dump snapshot without its payload
type SnapshotInfo struct {
	ID        string `json:"id"`
	DeviceID  string `json:"deviceId"`
	Kind      string `json:"kind"`
	Codec     string `json:"codec"`
	RawSize   int    `json:"rawSize"`
	Size      int    `json:"size"`
	CreatedAt int64  `json:"createdAt"`
}

// LocateRequest describes one control lookup
type LocateRequest struct {
	Window string `json:"window,omitempty"` // empty picks the first window of the tree
	Root   int64  `json:"root,omitempty"`   // 0 searches from the window root
	QPath  string `json:"qpath"`
	// Target, when non-zero, disambiguates multiple matches with Instance
	Target int64 `json:"target,omitempty"`
	// Diagnose reports where the path stopped matching
	Diagnose bool `json:"diagnose,omitempty"`
}
