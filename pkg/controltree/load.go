package controltree

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"AndroidUISpy/pkg/qpath"

	"github.com/tidwall/gjson"
)

// uiNode mirrors one <node> element of a `uiautomator dump`.
type uiNode struct {
	Text          string   `xml:"text,attr"`
	ResourceID    string   `xml:"resource-id,attr"`
	Class         string   `xml:"class,attr"`
	Package       string   `xml:"package,attr"`
	ContentDesc   string   `xml:"content-desc,attr"`
	Checkable     string   `xml:"checkable,attr"`
	Checked       string   `xml:"checked,attr"`
	Clickable     string   `xml:"clickable,attr"`
	Enabled       string   `xml:"enabled,attr"`
	Focusable     string   `xml:"focusable,attr"`
	Focused       string   `xml:"focused,attr"`
	Scrollable    string   `xml:"scrollable,attr"`
	LongClickable string   `xml:"long-clickable,attr"`
	Password      string   `xml:"password,attr"`
	Selected      string   `xml:"selected,attr"`
	Bounds        string   `xml:"bounds,attr"`
	Nodes         []uiNode `xml:"node"`
}

type uiHierarchy struct {
	XMLName xml.Name `xml:"hierarchy"`
	Nodes   []uiNode `xml:"node"`
}

// FromUIAutomatorXML builds a single-window tree from a uiautomator dump.
// Hashcodes are assigned in document order starting at 1. When window is
// empty the package of the first node is used as the window title.
func FromUIAutomatorXML(data []byte, window string) (*Tree, error) {
	content := sanitizeXML(string(data))
	var h uiHierarchy
	if err := xml.Unmarshal([]byte(content), &h); err != nil {
		return nil, fmt.Errorf("failed to parse UI XML (length: %d): %w", len(content), err)
	}
	if len(h.Nodes) == 0 {
		return nil, fmt.Errorf("UI XML has no nodes")
	}
	if window == "" {
		window = h.Nodes[0].Package
	}

	next := int64(1)
	var convert func(n *uiNode) *Control
	convert = func(n *uiNode) *Control {
		c := &Control{Hashcode: next, Props: nodeProps(n)}
		c.Props["Hashcode"] = strconv.FormatInt(next, 16)
		next++
		for i := range n.Nodes {
			c.Children = append(c.Children, convert(&n.Nodes[i]))
		}
		return c
	}

	var root *Control
	if len(h.Nodes) == 1 {
		root = convert(&h.Nodes[0])
	} else {
		root = &Control{Hashcode: next, Props: qpath.PropertyMap{
			"Type":    "View",
			"Class":   "android.view.View",
			"Package": h.Nodes[0].Package,
			"Visible": "True",
		}}
		root.Props["Hashcode"] = strconv.FormatInt(next, 16)
		next++
		for i := range h.Nodes {
			root.Children = append(root.Children, convert(&h.Nodes[i]))
		}
	}

	t := New()
	t.AddWindow(window, root)
	return t, nil
}

func nodeProps(n *uiNode) qpath.PropertyMap {
	return qpath.PropertyMap{
		"Id":            shortResourceID(n.ResourceID),
		"ResourceId":    n.ResourceID,
		"Text":          n.Text,
		"Type":          shortClass(n.Class),
		"Class":         n.Class,
		"Desc":          n.ContentDesc,
		"Package":       n.Package,
		"Bounds":        n.Bounds,
		"Visible":       "True",
		"Enabled":       boolProp(n.Enabled),
		"Clickable":     boolProp(n.Clickable),
		"LongClickable": boolProp(n.LongClickable),
		"Checkable":     boolProp(n.Checkable),
		"Checked":       boolProp(n.Checked),
		"Focusable":     boolProp(n.Focusable),
		"Focused":       boolProp(n.Focused),
		"Scrollable":    boolProp(n.Scrollable),
		"Selected":      boolProp(n.Selected),
		"Password":      boolProp(n.Password),
	}
}

// boolProp spells uiautomator's "true"/"false" as True/False, the form JSON
// trees use.
func boolProp(s string) string {
	switch strings.ToLower(s) {
	case "true":
		return "True"
	case "false":
		return "False"
	}
	return s
}

// shortResourceID turns "com.foo:id/title" into "title".
func shortResourceID(id string) string {
	if i := strings.Index(id, ":id/"); i >= 0 {
		return id[i+len(":id/"):]
	}
	return id
}

// shortClass turns "android.widget.TextView" into "TextView".
func shortClass(cls string) string {
	if i := strings.LastIndexByte(cls, '.'); i >= 0 {
		return cls[i+1:]
	}
	return cls
}

// sanitizeXML trims adb noise around the document and repairs bare
// ampersands that some ROMs leave unescaped.
func sanitizeXML(s string) string {
	if i := strings.Index(s, "<?xml"); i > 0 {
		s = s[i:]
	}
	if i := strings.LastIndex(s, ">"); i != -1 && i < len(s)-1 {
		s = s[:i+1]
	}
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "&amp;amp;", "&amp;")
	s = strings.ReplaceAll(s, "&amp;lt;", "&lt;")
	s = strings.ReplaceAll(s, "&amp;gt;", "&gt;")
	s = strings.ReplaceAll(s, "&amp;quot;", "&quot;")
	s = strings.ReplaceAll(s, "&amp;apos;", "&apos;")
	s = strings.ReplaceAll(s, "&amp;#", "&#")
	return s
}

// FromJSON builds a tree from a control-tree snapshot of the form
//
//	{"<window>": {"Hashcode": "3f2a", "Id": "title", "Type": "TextView", "Children": [...]}, ...}
//
// Hashcodes may be numbers or hex strings. Scalar fields other than
// Children become control properties. Windows whose root is not Visible
// are dropped, and keys of the form "Title#2" are grouped under "Title".
func FromJSON(data []byte) (*Tree, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid control tree JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("control tree JSON must be an object of windows")
	}

	t := New()
	var convErr error
	doc.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() || len(value.Map()) == 0 {
			return true
		}
		if isFalse(value.Get("Visible")) {
			return true
		}
		root, err := jsonControl(value)
		if err != nil {
			convErr = fmt.Errorf("window %q: %w", key.String(), err)
			return false
		}
		t.AddWindow(windowTitle(key.String()), root)
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	return t, nil
}

func jsonControl(v gjson.Result) (*Control, error) {
	c := &Control{Props: qpath.PropertyMap{}}
	h := v.Get("Hashcode")
	switch h.Type {
	case gjson.Number:
		c.Hashcode = h.Int()
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimPrefix(h.String(), "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad hashcode %q: %w", h.String(), err)
		}
		c.Hashcode = n
	default:
		return nil, fmt.Errorf("control without Hashcode: %s", truncate(v.Raw, 80))
	}

	var err error
	v.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		switch {
		case name == "Children":
			for _, child := range val.Array() {
				cc, e := jsonControl(child)
				if e != nil {
					err = e
					return false
				}
				c.Children = append(c.Children, cc)
			}
		case val.IsObject() || val.IsArray():
		case val.Type == gjson.True:
			c.Props[name] = "True"
		case val.Type == gjson.False:
			c.Props[name] = "False"
		default:
			c.Props[name] = val.String()
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if t, ok := c.Props["Type"]; ok {
		c.Props["Type"] = shortClass(t)
		if _, has := c.Props["Class"]; !has {
			c.Props["Class"] = t
		}
	}
	c.Props["Hashcode"] = strconv.FormatInt(c.Hashcode, 16)
	return c, nil
}

var windowSuffixRe = regexp.MustCompile(`^(.+)#\d+$`)

// windowTitle strips the "#N" suffix that tells same-titled windows apart.
func windowTitle(key string) string {
	if m := windowSuffixRe.FindStringSubmatch(key); m != nil {
		return m[1]
	}
	return key
}

func isFalse(v gjson.Result) bool {
	switch v.Type {
	case gjson.False:
		return true
	case gjson.String:
		return strings.EqualFold(v.String(), "false")
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
