package dumpsys

import (
	"strings"
	"testing"
)

const sampleActivityDump = `ACTIVITY MANAGER ACTIVITIES (dumpsys activity activities)
Display #0 (activities from top to bottom):
  Stack #1: type=standard mode=fullscreen
  isSleeping=false

    Task id #5
    * TaskRecord{5a3f2b1 #5 A=com.foo U=0 StackId=1 sz=2}
      userId=0 effectiveUid=u0a86 mCallingUid=2000
      * Hist #1: ActivityRecord{c8a12e u0 com.foo/.Detail t5}
          packageName=com.foo processName=com.foo:ui
          launchedFromUid=10086 launchedFromPackage=com.foo userId=0
          realActivity=com.foo/.Detail
          state=RESUMED stopped=false delayedResume=false finishing=false
          waitingVisible=false nowVisible=true lastVisibleTime=-1s
      * Hist #0: ActivityRecord{d9b23f u0 com.foo/.Main t5}
          packageName=com.foo processName=com.foo
          realActivity=com.foo/.Main
          state=STOPPED stopped=true delayedResume=false finishing=false
          waitingVisible=false nowVisible=false lastVisibleTime=-8s

    Task id #3
    * TaskRecord{6b4e3c2 #3 I=com.android.launcher3/.Launcher U=0 StackId=0 sz=1}
      * Hist #0: ActivityRecord{e0c34a u0 com.android.launcher3/.Launcher t3}
          packageName=com.android.launcher3 processName=com.android.launcher3
          realActivity=com.android.launcher3/.Launcher
          state=STOPPED stopped=true

  mLastPausedActivity: ActivityRecord{d9b23f u0 com.foo/.Main t5}
  Stack #0: type=home mode=fullscreen
    Task id #9
    * TaskRecord{7c5f4d3 #9 A=com.bar U=0 sz=1}
      * Hist #0: ActivityRecord{f1d45b u0 com.bar/com.bar.Home t9}
          packageName=com.bar processName=com.bar
          realActivity=com.bar/com.bar.Home
          state=PAUSED
`

func TestParseHistEntry(t *testing.T) {
	dump := strings.Join([]string{
		"  Stack #0:",
		"    Task id #5",
		"    * TaskRecord{1a2b3c #5 A=com.foo U=0 sz=1}",
		"      * Hist #2: ActivityRecord{abcde t5 com.foo/.Bar}",
		"          processName=com.foo",
		"          packageName=com.foo",
		"          state=RESUMED",
		"          waitingVisible=false",
		"          realActivity=com.foo/.Ignored",
	}, "\n")

	stacks := ParseActivityDump(dump)
	acts := Activities(stacks)
	if len(acts) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(acts))
	}
	a := acts[0]
	if a.Index != 2 {
		t.Errorf("Expected Hist index 2, got %d", a.Index)
	}
	if a.Record.Hashcode != "abcde" || a.Record.TaskID != 5 || a.Record.Component != "com.foo/.Bar" {
		t.Errorf("Unexpected record %+v", a.Record)
	}
	if a.ProcessName() != "com.foo" || a.PackageName() != "com.foo" || a.State() != "RESUMED" {
		t.Errorf("Unexpected attributes %v", a.Attrs)
	}
	if _, ok := a.Attrs["realActivity"]; ok {
		t.Error("Lines after waitingVisible must not feed the closed activity")
	}
	if a.Name() != "com.foo.Bar" {
		t.Errorf("Expected name from record component com.foo.Bar, got %q", a.Name())
	}
	if rec := stacks[0].Tasks[0].Record; rec == nil || rec.PackageName != "com.foo" || rec.TaskID != 5 {
		t.Errorf("Unexpected task record %+v", rec)
	}
}

func TestParseActivityDump(t *testing.T) {
	stacks := ParseActivityDump(sampleActivityDump)
	if len(stacks) != 2 {
		t.Fatalf("Expected 2 stacks, got %d", len(stacks))
	}
	if stacks[0].ID != 1 || stacks[1].ID != 0 {
		t.Errorf("Unexpected stack ids %d, %d", stacks[0].ID, stacks[1].ID)
	}

	first := stacks[0]
	if len(first.Tasks) != 2 {
		t.Fatalf("Expected 2 tasks in stack 1, got %d", len(first.Tasks))
	}
	task := first.Tasks[0]
	if task.ID != 5 || len(task.Activities) != 2 {
		t.Fatalf("Expected task 5 with 2 activities, got %d with %d", task.ID, len(task.Activities))
	}
	detail := task.Activities[0]
	if detail.Name() != "com.foo.Detail" || detail.ProcessName() != "com.foo:ui" || detail.State() != "RESUMED" {
		t.Errorf("Unexpected activity %v %v", detail, detail.Attrs)
	}

	launcherTask := first.Tasks[1]
	if launcherTask.Record == nil || launcherTask.Record.PackageName != "" {
		t.Errorf("Expected task record without A=, got %+v", launcherTask.Record)
	}

	home := stacks[1].Tasks[0].Activities[0]
	if home.Name() != "com.bar.Home" {
		t.Errorf("Expected com.bar.Home, got %q", home.Name())
	}

	if got := len(Activities(stacks)); got != 4 {
		t.Errorf("Expected 4 activities, got %d", got)
	}
	if r := ResumedActivity(stacks); r == nil || r != detail {
		t.Errorf("Expected resumed activity Detail, got %v", r)
	}
}

func TestParseMainStack(t *testing.T) {
	dump := strings.Join([]string{
		"  Main stack:",
		"    * TaskRecord{41b2c3d #12 A=com.old U=0 sz=1}",
		"      * Hist #0: ActivityRecord{41e5f6a com.old/.Start}",
		"          packageName=com.old processName=com.old",
		"          realActivity=com.old/.Start",
	}, "\n")

	stacks := ParseActivityDump(dump)
	if len(stacks) != 1 || stacks[0].ID != 0 {
		t.Fatalf("Expected main stack 0, got %v", stacks)
	}
	task := stacks[0].Tasks[0]
	if task.ID != 0 {
		t.Errorf("Expected implicit task 0, got %d", task.ID)
	}
	if len(task.Activities) != 1 || task.Activities[0].Name() != "com.old.Start" {
		t.Errorf("Unexpected activities %v", task.Activities)
	}
}

func TestHistWithoutWaitingVisible(t *testing.T) {
	dump := strings.Join([]string{
		"  Stack #3: type=standard",
		"    Task id #7",
		"    * TaskRecord{1a2b3c4 #7 A=com.new U=0}",
		"      * Hist #1: ActivityRecord{aa11bb u0 com.new/.B t7}",
		"          packageName=com.new processName=com.new",
		"          state=RESUMED",
		"      * Hist #0: ActivityRecord{cc22dd u0 com.new/.A t7}",
		"          packageName=com.new processName=com.new",
		"          state=STOPPED",
	}, "\n")

	acts := Activities(ParseActivityDump(dump))
	if len(acts) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(acts))
	}
	if acts[0].State() != "RESUMED" || acts[1].State() != "STOPPED" {
		t.Errorf("Unexpected states %q, %q", acts[0].State(), acts[1].State())
	}
}

func TestBlankLineClosesTask(t *testing.T) {
	dump := strings.Join([]string{
		"  Stack #1:",
		"    Task id #1",
		"    * TaskRecord{111aaa #1 A=com.a U=0}",
		"      * Hist #0: ActivityRecord{a0a0a0 u0 com.a/.Main t1}",
		"          packageName=com.a",
		"",
		"          state=RESUMED",
		"    Task id #2",
		"    * TaskRecord{222bbb #2 A=com.b U=0}",
	}, "\n")

	stacks := ParseActivityDump(dump)
	if len(stacks) != 1 || len(stacks[0].Tasks) != 2 {
		t.Fatalf("Expected 1 stack with 2 tasks, got %v", stacks)
	}
	a := stacks[0].Tasks[0].Activities[0]
	if _, ok := a.Attrs["state"]; ok {
		t.Error("Blank line should close the activity being filled")
	}
	if stacks[0].Tasks[1].Record == nil || stacks[0].Tasks[1].Record.PackageName != "com.b" {
		t.Errorf("Unexpected second task %+v", stacks[0].Tasks[1])
	}
}

func TestParseActivityMalformed(t *testing.T) {
	dump := strings.Join([]string{
		"  Stack #1:",
		"    Task id #4",
		"    * TaskRecord{12 #4 A=com.short}",
		"    * TaskRecord{abcdef #4 A=com.ok}",
		"      * Hist #0: ActivityRecord{abc u0 com.ok/.TooShort t4}",
		"      * Hist #1: ActivityRecord{abcdef u0 com.ok/.Good tx}",
		"          ??? =garbage state=RESUMED",
		"  Stack #junk:",
		"random text",
	}, "\n")

	stacks := ParseActivityDump(dump)
	if len(stacks) != 1 {
		t.Fatalf("Expected 1 stack, got %d", len(stacks))
	}
	task := stacks[0].Tasks[0]
	if task.Record == nil || task.Record.Hashcode != "abcdef" {
		t.Fatalf("Expected record abcdef, got %+v", task.Record)
	}
	if len(task.Activities) != 1 {
		t.Fatalf("Expected only the well-formed activity, got %d", len(task.Activities))
	}
	a := task.Activities[0]
	if a.Record.TaskID != 0 {
		t.Errorf("Unreadable task id should default to 0, got %d", a.Record.TaskID)
	}
	if a.State() != "RESUMED" {
		t.Errorf("Expected state RESUMED, got %q", a.State())
	}
}

func TestParseActivityEmpty(t *testing.T) {
	if stacks := ParseActivityDump(""); len(stacks) != 0 {
		t.Errorf("Expected no stacks, got %d", len(stacks))
	}
	if stacks := ParseActivityDump("\r\n\r\n"); len(stacks) != 0 {
		t.Errorf("Expected no stacks, got %d", len(stacks))
	}
}
