package main

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DumpWatcher re-parses an offline dump directory whenever its dump files
// change, e.g. while a script keeps overwriting window.txt.
type DumpWatcher struct {
	session  *Session
	dir      string
	debounce time.Duration
	onChange func(file string)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
}

// NewDumpWatcher watches dir and reloads session from it. onChange may be
// nil.
func NewDumpWatcher(session *Session, dir string, onChange func(file string)) *DumpWatcher {
	return &DumpWatcher{
		session:  session,
		dir:      dir,
		debounce: 300 * time.Millisecond,
		onChange: onChange,
	}
}

// Start begins watching the directory
func (w *DumpWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})

	LogInfo("dump_watcher").Str("path", w.dir).Msg("Started watching dump directory")
	go w.watch(watcher, w.stopCh, w.done)
	return nil
}

// Stop stops watching and waits for pending reloads to finish.
func (w *DumpWatcher) Stop() {
	w.mu.Lock()
	watcher, stopCh, done := w.watcher, w.stopCh, w.done
	w.watcher = nil
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	close(stopCh)
	watcher.Close()
	<-done
	LogInfo("dump_watcher").Msg("Stopped watching dump directory")
}

func (w *DumpWatcher) watch(watcher *fsnotify.Watcher, stopCh, done chan struct{}) {
	defer close(done)

	// one timer per file so a window.txt write does not swallow an
	// activity.txt write landing inside the same debounce window
	timers := make(map[string]*time.Timer)
	var pending sync.WaitGroup
	defer func() {
		for name, t := range timers {
			if t.Stop() {
				pending.Done()
			}
			delete(timers, name)
		}
		pending.Wait()
	}()

	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if !isDumpFile(name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if t, ok := timers[name]; ok && t.Stop() {
				pending.Done()
			}
			pending.Add(1)
			timers[name] = time.AfterFunc(w.debounce, func() {
				defer pending.Done()
				w.reload(name)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			LogError("dump_watcher").Err(err).Msg("Watcher error")
		}
	}
}

func isDumpFile(name string) bool {
	switch name {
	case WindowDumpFile, ActivityDumpFile, UIXMLFile, UIJSONFile:
		return true
	}
	return false
}

func (w *DumpWatcher) reload(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultAdbTimeout)
	defer cancel()

	var err error
	switch name {
	case WindowDumpFile:
		err = w.session.Windows.Update(ctx)
	case ActivityDumpFile:
		err = w.session.Activities.Update(ctx)
	default:
		w.session.Controls.SetControlTree(nil)
	}
	if err != nil {
		LogWarn("dump_watcher").Err(err).Str("file", name).Msg("Reload failed")
		return
	}
	LogDebug("dump_watcher").Str("file", name).Msg("Reloaded dump")
	if w.onChange != nil {
		w.onChange(name)
	}
}
