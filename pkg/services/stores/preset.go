package stores

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lionbot/lionbot/pkg/models/aigc"
)

// LoadPreset decode a yaml preset, an empty path gives the built-in one
func LoadPreset(path string) (doc aigc.Preset, err error) {
	if len(path) == 0 {
		return
	}
	var yf *os.File
	yf, err = os.Open(path)
	if err != nil {
		logger().Infow("load preset fail", "file", path, "err", err)
		return
	}
	defer yf.Close()
	err = yaml.NewDecoder(yf).Decode(&doc)
	if err != nil {
		logger().Infow("decode preset fail", "file", path, "err", err)
		return
	}

	return
}

// WatchPreset reloads the preset whenever the file is written, until ctx is done
func WatchPreset(ctx context.Context, path string, fn func(aigc.Preset)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// editors often replace the file, so watch its directory
	if err = w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(path)

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				doc, err := LoadPreset(path)
				if err != nil {
					continue
				}
				logger().Infow("preset reloaded", "file", path)
				fn(doc)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger().Infow("watch preset fail", "err", err)
			}
		}
	}()
	return nil
}
