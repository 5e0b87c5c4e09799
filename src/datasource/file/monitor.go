// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监听数据文件所在目录，目标文件更新后回调
type FileMonitor struct {
	watchDir string
	target   string
	watcher  *fsnotify.Watcher
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(path string) (*FileMonitor, error) {
	target, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		watchDir: dir,
		target:   target,
		watcher:  watcher,
	}
	if info, err := os.Stat(target); err == nil {
		m.lastMod = info.ModTime()
	}
	return m, nil
}

// Watch 阻塞直到ctx取消或watcher关闭
// watcher报错(如事件队列溢出)交给onError后继续监听，onError可为nil
func (m *FileMonitor) Watch(ctx context.Context, handler func(string), onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !m.relevant(event) {
				continue
			}
			if m.changed() {
				handler(m.target)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

func (m *FileMonitor) relevant(event fsnotify.Event) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != m.target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Chmod) != 0
}

// changed 修改时间比上次新才算变化
func (m *FileMonitor) changed() bool {
	info, err := os.Stat(m.target)
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !info.ModTime().After(m.lastMod) {
		return false
	}
	m.lastMod = info.ModTime()
	return true
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
