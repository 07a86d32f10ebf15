package controltree

import (
	"context"
	"strings"
	"testing"

	"AndroidUISpy/pkg/qpath"
)

// Document order (hashcode):
//
//	1 FrameLayout root
//	2   LinearLayout id=content
//	3     TextView id=title "Inbox"
//	4     ListView id=list
//	5       LinearLayout
//	6         TextView id=name "Alice"
//	7       LinearLayout
//	8         TextView id=name "Bob"
//	9     Button id=compose "Compose & send"
const sampleXML = `adb noise
<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,0][1080,2400]">
    <node index="0" text="" resource-id="com.foo:id/content" class="android.widget.LinearLayout" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,63][1080,2400]">
      <node index="0" text="Inbox" resource-id="com.foo:id/title" class="android.widget.TextView" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,63][1080,200]" />
      <node index="1" text="" resource-id="com.foo:id/list" class="android.widget.ListView" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,200][1080,2200]">
        <node index="0" text="" resource-id="" class="android.widget.LinearLayout" package="com.foo" content-desc="" clickable="true" enabled="true" bounds="[0,200][1080,400]">
          <node index="0" text="Alice" resource-id="com.foo:id/name" class="android.widget.TextView" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,200][1080,400]" />
        </node>
        <node index="1" text="" resource-id="" class="android.widget.LinearLayout" package="com.foo" content-desc="" clickable="true" enabled="true" bounds="[0,400][1080,600]">
          <node index="0" text="Bob" resource-id="com.foo:id/name" class="android.widget.TextView" package="com.foo" content-desc="" clickable="false" enabled="true" bounds="[0,400][1080,600]" />
        </node>
      </node>
      <node index="2" text="Compose & send" resource-id="com.foo:id/compose" class="android.widget.Button" package="com.foo" content-desc="Compose" clickable="true" enabled="true" bounds="[800,2200][1080,2400]" />
    </node>
  </node>
</hierarchy>
trailing`

func loadSample(t *testing.T) *Tree {
	t.Helper()
	tree, err := FromUIAutomatorXML([]byte(sampleXML), "com.foo/.MainActivity")
	if err != nil {
		t.Fatalf("FromUIAutomatorXML failed: %v", err)
	}
	return tree
}

func query(t *testing.T, tree *Tree, root int64, path string) []int64 {
	t.Helper()
	q := qpath.MustParse(path)
	got, err := tree.QueryControl(context.Background(), "com.foo/.MainActivity", root, q.Locators())
	if err != nil {
		t.Fatalf("QueryControl(%s) failed: %v", path, err)
	}
	return got
}

func equalHashes(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFromUIAutomatorXML(t *testing.T) {
	tree := loadSample(t)

	if w := tree.Windows(); len(w) != 1 || w[0] != "com.foo/.MainActivity" {
		t.Fatalf("Unexpected windows %v", w)
	}
	c, ok := tree.Find(3)
	if !ok {
		t.Fatal("Expected control 3")
	}
	if c.ID() != "title" || c.Props["Type"] != "TextView" || c.Props["Text"] != "Inbox" {
		t.Errorf("Unexpected properties %v", c.Props)
	}
	compose, _ := tree.Find(9)
	if compose.Props["Text"] != "Compose & send" {
		t.Errorf("Expected repaired ampersand, got %q", compose.Props["Text"])
	}
	if path := tree.PathOf(6); len(path) != 5 || path[0].Hashcode != 1 || path[4].Hashcode != 6 {
		t.Errorf("Unexpected path to 6: %v", path)
	}
}

func TestFromUIAutomatorXMLDefaultsWindowToPackage(t *testing.T) {
	tree, err := FromUIAutomatorXML([]byte(sampleXML), "")
	if err != nil {
		t.Fatalf("FromUIAutomatorXML failed: %v", err)
	}
	if _, ok := tree.Root("com.foo"); !ok {
		t.Errorf("Expected window named after package, got %v", tree.Windows())
	}
}

func TestQueryControl(t *testing.T) {
	tree := loadSample(t)

	tests := []struct {
		path string
		root int64
		want []int64
	}{
		{`/Id='title'`, 0, []int64{3}},
		{`/Id='name'`, 0, []int64{6, 8}},
		{`/Id='name' && Instance=1`, 0, []int64{8}},
		{`/Id='name' && Instance=-1`, 0, []int64{8}},
		{`/Id='name' && Instance=5`, 0, nil},
		{`/Text~='^B'`, 0, []int64{8}},
		{`/Type='TextView'`, 0, []int64{3, 6, 8}},
		{`/Id='list' /Type='LinearLayout'`, 0, []int64{5, 7}},
		{`/Id='list' /Id='name'`, 0, nil},
		{`/Id='list' /Id='name' && MaxDepth=2`, 0, []int64{6, 8}},
		{`/Id='content' /Type='LinearLayout' && MaxDepth=3`, 0, []int64{5, 7}},
		{`/Type='FrameLayout'`, 0, []int64{1}},
		{`/Id='name'`, 7, []int64{8}},
		{`/Type='FrameLayout'`, 2, nil},
		{`/Id='title' && MaxDepth=1`, 0, nil},
		{`/Id='title' && MaxDepth=2`, 0, []int64{3}},
		{`/Id='title' && MaxDepth=2`, 1, []int64{3}},
		{`/Id='content' && MaxDepth=1`, 0, []int64{2}},
		{`/Id='content' && MaxDepth=1`, 1, []int64{2}},
		{`/Type='FrameLayout' && MaxDepth=1`, 0, []int64{1}},
		{`/Clickable=True && Type='Button'`, 0, []int64{9}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := query(t, tree, tt.root, tt.path)
			if !equalHashes(got, tt.want) {
				t.Errorf("QueryControl(%s, root=%d) = %v, want %v", tt.path, tt.root, got, tt.want)
			}
		})
	}
}

func TestQueryControlStableOrder(t *testing.T) {
	tree := loadSample(t)
	first := query(t, tree, 0, `/Type='TextView'`)
	for i := 0; i < 5; i++ {
		if again := query(t, tree, 0, `/Type='TextView'`); !equalHashes(first, again) {
			t.Fatalf("Order changed between queries: %v vs %v", first, again)
		}
	}
}

func TestQueryControlErrors(t *testing.T) {
	tree := loadSample(t)
	locs := qpath.MustParse(`/Id='title'`).Locators()

	if _, err := tree.QueryControl(context.Background(), "nope", 0, locs); err == nil {
		t.Error("Expected error for unknown window")
	}
	if _, err := tree.QueryControl(context.Background(), "com.foo/.MainActivity", 999, locs); err == nil {
		t.Error("Expected error for unknown root")
	}
	if _, err := tree.QueryControl(context.Background(), "com.foo/.MainActivity", 0, nil); err == nil {
		t.Error("Expected error for empty chain")
	}
}

func TestMatcherOverTree(t *testing.T) {
	tree := loadSample(t)
	m := qpath.NewMatcher(tree, qpath.WithDiagnosis())
	ctx := context.Background()

	res, err := m.MatchOrDisambiguate(ctx, "com.foo/.MainActivity", 0, qpath.MustParse(`/Id='name'`), 8)
	if err != nil {
		t.Fatalf("MatchOrDisambiguate failed: %v", err)
	}
	if n, _ := res.Path.Locator(0).Instance(); n != 1 {
		t.Errorf("Expected Instance=1, got %s", res.Path)
	}

	_, err = m.Locate(ctx, "com.foo/.MainActivity", 0, qpath.MustParse(`/Id='list' /Id='missing' /Text='x'`))
	nf, ok := err.(*qpath.ControlNotFoundError)
	if !ok {
		t.Fatalf("Expected ControlNotFoundError, got %v", err)
	}
	if nf.FailedAt != 1 || !strings.Contains(nf.Unresolved, "missing") {
		t.Errorf("Unexpected diagnosis %+v", nf)
	}
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"com.foo/.Main": {
			"Hashcode": "1a", "Type": "com.android.internal.policy.DecorView", "Visible": true,
			"Children": [
				{"Hashcode": 27, "Id": "title", "Type": "android.widget.TextView", "Text": "Hi", "Visible": true},
				{"Hashcode": "0x1c", "Id": "None", "Type": "android.widget.Button", "Visible": false, "Rect": {"x": 1}}
			]
		},
		"PopupWindow:1": {"Hashcode": 100, "Id": "menu", "Type": "android.widget.ListView"}
	}`)

	tree, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if w := tree.Windows(); len(w) != 2 || w[0] != "com.foo/.Main" {
		t.Errorf("Unexpected windows %v", w)
	}
	title, ok := tree.Find(27)
	if !ok || title.Props["Type"] != "TextView" || title.Props["Class"] != "android.widget.TextView" {
		t.Errorf("Unexpected control 27: %v", title)
	}
	btn, ok := tree.Find(0x1c)
	if !ok || btn.ID() != "" || btn.Props["Visible"] != "False" {
		t.Errorf("Unexpected control 0x1c: %v", btn)
	}
	if _, ok := btn.Props["Rect"]; ok {
		t.Error("Nested objects must not become properties")
	}

	got, err := tree.QueryControl(context.Background(), "com.foo/.Main", 0, qpath.MustParse(`/Visible=False`).Locators())
	if err != nil || !equalHashes(got, []int64{0x1c}) {
		t.Errorf("Expected [0x1c], got %v (%v)", got, err)
	}
}

func TestFromJSONWindowGrouping(t *testing.T) {
	data := []byte(`{
		"com.foo/.Main#1": {"Hashcode": 1, "Id": "root", "Visible": false,
			"Children": [{"Hashcode": 2, "Id": "ok", "Visible": true}]},
		"com.foo/.Main#2": {"Hashcode": 3, "Id": "root", "Visible": true,
			"Children": [{"Hashcode": 4, "Id": "ok", "Visible": true}]},
		"com.foo/.Main#3": {"Hashcode": 5, "Id": "root", "Visible": true,
			"Children": [{"Hashcode": 6, "Id": "ok", "Visible": true}]},
		"StatusBar": {}
	}`)

	tree, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON failed: %v", err)
	}
	if w := tree.Windows(); len(w) != 1 || w[0] != "com.foo/.Main" {
		t.Fatalf("Unexpected windows %v", w)
	}
	if roots := tree.Roots("com.foo/.Main"); len(roots) != 2 || roots[0].Hashcode != 3 || roots[1].Hashcode != 5 {
		t.Errorf("Expected visible roots 3 and 5, got %v", roots)
	}
	if _, ok := tree.Find(2); ok {
		t.Error("Controls of invisible windows must not be indexed")
	}

	got, err := tree.QueryControl(context.Background(), "com.foo/.Main", 0, qpath.MustParse(`/Id='ok'`).Locators())
	if err != nil || !equalHashes(got, []int64{4, 6}) {
		t.Errorf("Expected [4 6], got %v (%v)", got, err)
	}
	got, err = tree.QueryControl(context.Background(), "com.foo/.Main", 0, qpath.MustParse(`/Id='root'`).Locators())
	if err != nil || !equalHashes(got, []int64{3, 5}) {
		t.Errorf("Expected [3 5], got %v (%v)", got, err)
	}
}

func TestFromUIAutomatorXMLBooleans(t *testing.T) {
	tree := loadSample(t)
	tests := []struct {
		path string
		want []int64
	}{
		{`/Enabled='True' && Id='title'`, []int64{3}},
		{`/Enabled=True && Id='title'`, []int64{3}},
		{`/Visible='True' && Id='title'`, []int64{3}},
		{`/Clickable='False' && Id='title'`, []int64{3}},
		{`/Enabled='true' && Id='title'`, nil},
	}
	for _, tt := range tests {
		if got := query(t, tree, 0, tt.path); !equalHashes(got, tt.want) {
			t.Errorf("QueryControl(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFromJSONErrors(t *testing.T) {
	bad := []string{
		`not json`,
		`[1, 2]`,
		`{"w": {"Id": "x"}}`,
		`{"w": {"Hashcode": "zz"}}`,
	}
	for _, s := range bad {
		if _, err := FromJSON([]byte(s)); err == nil {
			t.Errorf("Expected error for %s", s)
		}
	}
}
