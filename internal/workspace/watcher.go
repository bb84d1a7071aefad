package workspace

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher watches a project tree and invokes a callback after a quiet
// period once PHP sources change.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	debounce time.Duration
	onChange func()

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}

	eventsMu sync.Mutex
	timer    *time.Timer
}

// NewFileWatcher creates a watcher over root. onChange runs on its own
// goroutine after debounce of event silence.
func NewFileWatcher(root string, debounce time.Duration, onChange func()) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:  w,
		root:     root,
		debounce: debounce,
		onChange: onChange,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start registers the directory tree and begins dispatching events.
func (fw *FileWatcher) Start() {
	err := filepath.Walk(fw.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if _, skip := defaultSkipDirs[base]; skip {
			return filepath.SkipDir
		}
		if strings.HasPrefix(base, ".") && base != "." {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			log.Printf("[WARN] Unable to watch %s: %v", path, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("[WARN] Error walking directory for watcher setup: %v", err)
	}

	log.Printf("Watching %s for changes", fw.root)
	go fw.watchLoop()
}

func (fw *FileWatcher) watchLoop() {
	defer close(fw.done)
	defer fw.watcher.Close()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}

			// New directories need their own watch registration.
			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					base := filepath.Base(event.Name)
					if _, skip := defaultSkipDirs[base]; !skip && !strings.HasPrefix(base, ".") {
						if err := fw.watcher.Add(event.Name); err != nil {
							log.Printf("[WARN] Unable to watch new dir %s: %v", event.Name, err)
						}
					}
					fw.trigger()
					continue
				}
			}

			if strings.HasSuffix(event.Name, ".php") {
				fw.trigger()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[ERROR] Watcher error: %v", err)

		case <-fw.stopChan:
			return
		}
	}
}

func (fw *FileWatcher) trigger() {
	fw.eventsMu.Lock()
	defer fw.eventsMu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		log.Printf("File changes detected in %s - re-running analysis", fw.root)
		fw.onChange()
	})
}

// Stop shuts the watcher down and waits for the event loop to exit. A
// pending debounce timer is cancelled.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
	})
	<-fw.done

	fw.eventsMu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.eventsMu.Unlock()
}
