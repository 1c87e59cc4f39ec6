package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchFile runs fn once, then again after every write to path (debounced),
// until ctx is done. Errors from fn are printed and watching continues.
func watchFile(ctx context.Context, path string, debounce time.Duration, fn func() error, errOut io.Writer) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// 监听目录，编辑器保存时常常是替换文件
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	rerun := func() {
		if err := fn(); err != nil {
			fmt.Fprintln(errOut, "error:", err)
		}
	}
	rerun()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			rerun()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(errOut, "watch error:", err)
		}
	}
}
