package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Journal is a file-backed feed shared by processes on one machine. Publish
// appends a JSON line under an exclusive flock; subscribers tail the file
// with fsnotify and deliver lines written after they subscribed.
type Journal struct {
	path   string
	logger *zap.Logger
}

// NewJournal returns a journal feed stored at path.
func NewJournal(path string, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{path: path, logger: logger}
}

func (j *Journal) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return atomicAppend(j.path, data)
}

func atomicAppend(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

func (j *Journal) Subscribe(ctx context.Context, channelID string, handlers Handlers) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek journal: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	// Watch the directory: editors and truncation can replace the file.
	if err := watcher.Add(filepath.Dir(j.path)); err != nil {
		_ = watcher.Close()
		_ = f.Close()
		return nil, fmt.Errorf("watch journal: %w", err)
	}

	sub := &journalSub{
		journal:   j,
		channelID: channelID,
		handlers:  handlers,
		file:      f,
		offset:    offset,
		watcher:   watcher,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	go sub.loop()
	j.logger.Debug("tailing journal", zap.String("path", j.path), zap.String("channel", channelID))
	return sub, nil
}

type journalSub struct {
	journal   *Journal
	channelID string
	handlers  Handlers
	file      *os.File
	offset    int64
	partial   []byte
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

func (s *journalSub) loop() {
	defer close(s.done)
	name := filepath.Clean(s.journal.path)
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				s.readNew()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.journal.logger.Warn("journal watcher error", zap.Error(err))
		}
	}
}

func (s *journalSub) readNew() {
	info, err := os.Stat(s.journal.path)
	if err != nil {
		return
	}
	if info.Size() < s.offset {
		// Truncated or replaced: start over from the new beginning.
		if f, err := os.Open(s.journal.path); err == nil {
			_ = s.file.Close()
			s.file = f
		}
		s.offset = 0
		s.partial = nil
	}
	if _, err := s.file.Seek(s.offset, io.SeekStart); err != nil {
		s.journal.logger.Warn("journal seek failed", zap.Error(err))
		return
	}
	data, err := io.ReadAll(s.file)
	if err != nil {
		s.journal.logger.Warn("journal read failed", zap.Error(err))
		return
	}
	s.offset += int64(len(data))

	buf := append(s.partial, data...)
	lastNL := bytes.LastIndexByte(buf, '\n')
	if lastNL < 0 {
		s.partial = buf
		return
	}
	s.partial = append([]byte(nil), buf[lastNL+1:]...)

	scanner := bufio.NewScanner(bytes.NewReader(buf[:lastNL+1]))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			s.journal.logger.Warn("dropping undecodable journal line", zap.Error(err))
			continue
		}
		if ev.ChannelID != s.channelID {
			continue
		}
		select {
		case <-s.stopCh:
			return
		default:
		}
		Dispatch(s.handlers, ev)
	}
}

func (s *journalSub) Unsubscribe() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		err = s.watcher.Close()
		<-s.done
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
