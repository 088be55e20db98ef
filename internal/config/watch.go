// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Bederf/aimthelaw-sub002/internal/logging"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads the config file on change and hands the result to a
// callback. A reload that fails validation keeps the previous configuration.
type Watcher struct {
	path     string
	onReload func(*Config)

	watcher *fsnotify.Watcher
	timer   *time.Timer
	mu      sync.Mutex
	done    chan struct{}
	log     zerolog.Logger
}

// Watch starts watching the config file's directory. The directory is
// watched rather than the file itself so atomic rename-based saves are
// still observed.
func Watch(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     path,
		onReload: onReload,
		watcher:  fw,
		done:     make(chan struct{}),
		log:      logging.For("config"),
	}
	go w.run()
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).
			Msg("config reload failed; keeping previous configuration")
		return
	}
	w.log.Info().Str("path", w.path).Msg("configuration reloaded")
	w.onReload(cfg)
}
