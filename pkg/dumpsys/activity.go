package dumpsys

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	stackHeaderRe  = regexp.MustCompile(`^  Stack #(\d+).*:.*$`)
	taskHeaderRe   = regexp.MustCompile(`^    Task id #(\d+)$`)
	taskRecordRe   = regexp.MustCompile(`^\s*(?:\* )?TaskRecord\{(\w{6,8}) #(\d+)(.*)\}$`)
	activityHistRe = regexp.MustCompile(`^\s*(?:\* )?Hist #(\d+): ActivityRecord\{(\w{5,8}) (.+)\}$`)
)

// Activity attribute keys kept from the indented lines below a Hist entry.
var activityKeys = []string{"processName", "packageName", "realActivity", "state"}

// Stack is an activity stack. "Main stack" dumps of old releases are
// reported as stack 0.
type Stack struct {
	ID    int
	Tasks []*Task
}

// Task groups the activities of one task.
type Task struct {
	ID         int
	Record     *TaskRecord
	Activities []*Activity
}

// TaskRecord is the TaskRecord{...} line of a task.
type TaskRecord struct {
	Hashcode string
	TaskID   int
	// PackageName is the A= affinity, empty when absent.
	PackageName string
}

// ActivityRecord is the ActivityRecord{...} reference of a Hist entry.
type ActivityRecord struct {
	Hashcode string
	TaskID   int
	// Component is the raw "pkg/.Cls" token.
	Component string
}

// Activity is one Hist entry together with its attributes.
type Activity struct {
	Index  int
	Record ActivityRecord
	Attrs  map[string]string
}

// Name derives the activity class from realActivity, expanding a leading
// dot with the package. Falls back to the record component.
func (a *Activity) Name() string {
	ra, ok := a.Attrs["realActivity"]
	if !ok {
		ra = a.Record.Component
	}
	return qualifiedName(ra)
}

// PackageName returns the packageName attribute.
func (a *Activity) PackageName() string { return a.Attrs["packageName"] }

// ProcessName returns the processName attribute.
func (a *Activity) ProcessName() string { return a.Attrs["processName"] }

// State returns the lifecycle state, e.g. "RESUMED".
func (a *Activity) State() string { return a.Attrs["state"] }

func (a *Activity) String() string {
	return fmt.Sprintf("<Activity #%d hashcode=0x%s task=%d name=%s state=%s>",
		a.Index, a.Record.Hashcode, a.Record.TaskID, a.Name(), a.State())
}

// Activities flattens stacks into one ordered list.
func Activities(stacks []*Stack) []*Activity {
	var out []*Activity
	for _, s := range stacks {
		for _, t := range s.Tasks {
			out = append(out, t.Activities...)
		}
	}
	return out
}

// ResumedActivity returns the first activity in state RESUMED.
func ResumedActivity(stacks []*Stack) *Activity {
	for _, a := range Activities(stacks) {
		if a.State() == "RESUMED" {
			return a
		}
	}
	return nil
}

// ========================================
// Parser
// ========================================

type activityParseState int

const (
	activityNoStack activityParseState = iota
	activityInStack
	activityInTask
	activityInRecord
	activityInActivity
)

var activityStateNames = [...]string{"NoStack", "InStack", "InTask", "InRecord", "InActivity"}

func (s activityParseState) String() string {
	return activityStateNames[s]
}

type activityParser struct {
	state  activityParseState
	stack  *Stack
	task   *Task
	hist   *Activity
	stacks []*Stack
	log    zerolog.Logger
}

// ParseActivityDump parses the output of `dumpsys activity activities`. It
// never fails; unrecognised lines are skipped.
func ParseActivityDump(raw string, opts ...Option) []*Stack {
	o := newOptions(opts)
	p := &activityParser{log: o.log.With().Str("parser", "activity").Logger()}
	for _, line := range splitLines(raw) {
		p.step(line)
	}
	p.log.Debug().Int("stacks", len(p.stacks)).Msg("activity dump parsed")
	return p.stacks
}

// step is the single transition function of the activity FSM.
func (p *activityParser) step(line string) {
	if line == "" {
		p.closeTask()
		return
	}
	if strings.Contains(line, "mLastPausedActivity:") {
		p.closeTask()
		p.stack = nil
		p.state = activityNoStack
		return
	}

	switch p.state {
	case activityNoStack:
		p.inNoStack(line)
	case activityInStack:
		if m := taskHeaderRe.FindStringSubmatch(line); m != nil {
			p.openTask(atoi(m[1]))
		}
	case activityInTask:
		p.inTask(line)
	case activityInRecord:
		p.openActivity(line)
	case activityInActivity:
		p.inActivity(line)
	}
}

func (p *activityParser) inNoStack(line string) {
	if line == "  Main stack:" {
		p.openStack(0)
		p.openTask(0)
		return
	}
	if m := stackHeaderRe.FindStringSubmatch(line); m != nil {
		p.openStack(atoi(m[1]))
	}
}

func (p *activityParser) inTask(line string) {
	m := taskRecordRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	rec := &TaskRecord{Hashcode: m[1], TaskID: atoi(m[2])}
	scanFields(strings.TrimSpace(m[3]), []string{"A"}, func(_, val string) {
		if rec.PackageName == "" {
			rec.PackageName = val
		}
	})
	p.task.Record = rec
	p.state = activityInRecord
}

func (p *activityParser) inActivity(line string) {
	if activityHistRe.MatchString(line) {
		// releases without waitingVisible go straight to the next entry
		p.hist = nil
		p.openActivity(line)
		return
	}
	if indent(line) >= 4 {
		scanFields(line, activityKeys, func(key, val string) {
			p.hist.Attrs[key] = val
		})
	}
	if strings.Contains(line, "waitingVisible") {
		p.hist = nil
		p.state = activityInRecord
	}
}

func (p *activityParser) openStack(id int) {
	p.stack = &Stack{ID: id}
	p.stacks = append(p.stacks, p.stack)
	p.state = activityInStack
}

func (p *activityParser) openTask(id int) {
	p.task = &Task{ID: id}
	p.stack.Tasks = append(p.stack.Tasks, p.task)
	p.state = activityInTask
}

func (p *activityParser) openActivity(line string) {
	m := activityHistRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	rec := ActivityRecord{Hashcode: m[2]}
	for _, item := range strings.Fields(m[3]) {
		switch {
		case strings.Contains(item, "/"):
			rec.Component = item
		case item[0] == 't':
			if n, err := strconv.Atoi(item[1:]); err == nil {
				rec.TaskID = n
			} else {
				p.log.Debug().Str("token", item).Msg("unreadable task id")
			}
		}
	}
	p.hist = &Activity{Index: atoi(m[1]), Record: rec, Attrs: make(map[string]string)}
	p.task.Activities = append(p.task.Activities, p.hist)
	p.state = activityInActivity
}

// closeTask ends the current task and any activity being filled. The stack
// stays open.
func (p *activityParser) closeTask() {
	p.task = nil
	p.hist = nil
	if p.stack != nil {
		p.state = activityInStack
	} else {
		p.state = activityNoStack
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
