package moderation

import (
	"context"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchRules reloads the lexicon file into the filter whenever it changes on
// disk, until ctx is cancelled. A reload that fails to parse keeps the
// previous ruleset active.
func WatchRules(ctx context.Context, path string, filter *RuleFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory, not the file: config tooling often replaces the
	// file via rename, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				rules, err := LoadRuleset(path)
				if err != nil {
					log.Printf("moderation rules reload failed: %v", err)
					continue
				}
				filter.Swap(rules)
				log.Printf("moderation rules reloaded from %s", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("moderation rules watcher error: %v", err)
			}
		}
	}()
	return nil
}
