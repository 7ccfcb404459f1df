package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"resumatch/internal/errors"
)

// CertWatcher watches certificate files and invokes a callback after changes
// settle. Events are debounced because certificate rotation typically touches
// the cert and key files in quick succession and should produce one reload.
type CertWatcher struct {
	mu sync.RWMutex

	certFile string
	keyFile  string
	caFile   string

	lastModTime map[string]time.Time

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}

	reloadCallback func()
	logger         *errors.Logger

	running bool
}

// NewCertWatcher creates a watcher for the given certificate files. Empty
// paths are skipped. A zero debounce delay defaults to one second.
func NewCertWatcher(certFile, keyFile, caFile string, debounceDelay time.Duration, reloadCallback func(), logger *errors.Logger) (*CertWatcher, error) {
	if debounceDelay == 0 {
		debounceDelay = time.Second
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &CertWatcher{
		certFile:       certFile,
		keyFile:        keyFile,
		caFile:         caFile,
		lastModTime:    make(map[string]time.Time),
		fsWatcher:      fsWatcher,
		debounceDelay:  debounceDelay,
		stopChan:       make(chan struct{}),
		reloadChan:     make(chan struct{}, 1),
		reloadCallback: reloadCallback,
		logger:         logger,
	}, nil
}

// watchedFiles returns the configured certificate paths, skipping empty ones.
func (cw *CertWatcher) watchedFiles() []string {
	files := make([]string, 0, 3)
	for _, f := range []string{cw.certFile, cw.keyFile, cw.caFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// Start records current modification times and begins watching.
func (cw *CertWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("certificate watcher is already running")
	}

	if err := cw.seedModTimes(); err != nil {
		if closeErr := cw.fsWatcher.Close(); closeErr != nil && cw.logger != nil {
			cw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to get initial file modification times: %w", err)
	}

	files := cw.watchedFiles()
	for _, file := range files {
		if err := cw.watchFile(file); err != nil && cw.logger != nil {
			cw.logger.Warn("Failed to watch certificate file", "file", file, "error", err)
		}
	}

	cw.running = true
	go cw.run()

	if cw.logger != nil {
		cw.logger.Info("Certificate file watcher started",
			"files", files,
			"debounce_delay", cw.debounceDelay)
	}
	return nil
}

// Stop shuts down the watcher. Stopping a watcher that never started is a
// no-op.
func (cw *CertWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.running {
		return nil
	}

	close(cw.stopChan)

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	if err := cw.fsWatcher.Close(); err != nil {
		if cw.logger != nil {
			cw.logger.LogError(err, "Failed to close file system watcher")
		}
		return err
	}

	cw.running = false

	if cw.logger != nil {
		cw.logger.Info("Certificate file watcher stopped")
	}
	return nil
}

// watchFile registers a file with the fsnotify watcher. A missing file is
// covered by watching its directory, and the directory is watched in any
// case to catch atomic writes done as rename.
func (cw *CertWatcher) watchFile(file string) error {
	if err := cw.fsWatcher.Add(file); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to watch file %s: %w", file, err)
		}
		dir := filepath.Dir(file)
		if err := cw.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		if cw.logger != nil {
			cw.logger.Info("Watching directory for certificate file",
				"file", file, "directory", dir)
		}
	}

	dir := filepath.Dir(file)
	if err := cw.fsWatcher.Add(dir); err != nil {
		if cw.logger != nil {
			cw.logger.Warn("Failed to watch directory for atomic writes",
				"directory", dir, "error", err)
		}
	}
	return nil
}

// seedModTimes records the current modification time of each watched file so
// the first change can be detected. Files that do not exist yet are skipped.
func (cw *CertWatcher) seedModTimes() error {
	for _, file := range cw.watchedFiles() {
		stat, err := os.Stat(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat file %s: %w", file, err)
		}
		cw.lastModTime[file] = stat.ModTime()
	}
	return nil
}

// changed reports whether a file was modified or deleted since last seen,
// updating the stored modification time as a side effect.
func (cw *CertWatcher) changed(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			if _, seen := cw.lastModTime[file]; seen {
				delete(cw.lastModTime, file)
				return true
			}
		}
		return false
	}

	lastMod, seen := cw.lastModTime[file]
	if !seen || stat.ModTime().After(lastMod) {
		cw.lastModTime[file] = stat.ModTime()
		return true
	}
	return false
}

// run is the watcher event loop. Raw fsnotify events only arm the debounce
// timer; the actual change check and callback happen when the timer fires a
// tick into reloadChan.
func (cw *CertWatcher) run() {
	for {
		select {
		case event, ok := <-cw.fsWatcher.Events:
			if !ok {
				return
			}
			if cw.relevantEvent(event) {
				cw.debounce()
			}

		case err, ok := <-cw.fsWatcher.Errors:
			if !ok {
				return
			}
			if cw.logger != nil {
				cw.logger.LogError(err, "File watcher error")
			}

		case <-cw.reloadChan:
			if cw.anyChanged() {
				if cw.logger != nil {
					cw.logger.Info("Certificate files changed, triggering reload")
				}
				cw.reloadCallback()
			}

		case <-cw.stopChan:
			return
		}
	}
}

// relevantEvent reports whether an event concerns a watched certificate file.
// Base names are compared too because directory watches report events for
// sibling files.
func (cw *CertWatcher) relevantEvent(event fsnotify.Event) bool {
	matched := false
	for _, file := range cw.watchedFiles() {
		if event.Name == file || filepath.Base(event.Name) == filepath.Base(file) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (cw *CertWatcher) anyChanged() bool {
	return slices.ContainsFunc(cw.watchedFiles(), cw.changed)
}

// debounce arms the debounce timer, resetting it if already armed. The
// buffered send keeps a pending reload from blocking the timer goroutine.
func (cw *CertWatcher) debounce() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.debounceTimer != nil {
		cw.debounceTimer.Stop()
	}

	cw.debounceTimer = time.AfterFunc(cw.debounceDelay, func() {
		select {
		case cw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// IsRunning reports whether the watcher loop is active.
func (cw *CertWatcher) IsRunning() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.running
}

// GetWatchedFiles returns the certificate paths under watch.
func (cw *CertWatcher) GetWatchedFiles() []string {
	return cw.watchedFiles()
}
