// Package watcher reloads the YAML configuration when the file changes on
// disk. Reloads swap tunables only; in-flight requests are untouched.
package watcher

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/config"
)

// Editors often emit several events per save; changes within this window
// collapse into one reload.
const reloadDebounce = 200 * time.Millisecond

// Watch observes the config file until ctx is cancelled, invoking onReload
// with each successfully parsed new configuration.
func Watch(ctx context.Context, configPath string, onReload func(*config.Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors that write-rename would otherwise drop
	// the watch on the old inode.
	if err = w.Add(filepath.Dir(configPath)); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		defer func() { _ = w.Close() }()
		var pending *time.Timer
		target := filepath.Clean(configPath)

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDebounce, func() {
					cfg, err := config.LoadConfig(configPath)
					if err != nil {
						log.Warnf("config reload skipped: %v", err)
						return
					}
					log.Infof("config reloaded from %s", configPath)
					onReload(cfg)
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher: %v", err)
			}
		}
	}()
	return nil
}
