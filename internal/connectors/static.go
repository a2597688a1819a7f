package connectors

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DirSource читает артефакты из локального каталога (выгрузка движка валидации, CI).
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Clean("/"+name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &SourceError{Source: name, Reason: "file not found", Err: ErrSourceUnavailable}
	}
	if err != nil {
		return nil, &SourceError{Source: name, Reason: err.Error(), Err: err}
	}
	if isHTML("", data) || len(data) == 0 {
		return nil, &SourceError{Source: name, Reason: "no data", Err: ErrSourceUnavailable}
	}
	return data, nil
}

// StaticSource: источник в памяти с управляемыми ответами и задержкой.
// Используется в тестах и при локальной отладке.
type StaticSource struct {
	mu     sync.RWMutex
	bodies map[string][]byte
	errs   map[string]error
	delay  map[string]time.Duration
	calls  map[string]int
}

func NewStaticSource() *StaticSource {
	return &StaticSource{
		bodies: make(map[string][]byte),
		errs:   make(map[string]error),
		delay:  make(map[string]time.Duration),
		calls:  make(map[string]int),
	}
}

func (s *StaticSource) Set(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bodies[name] = body
	delete(s.errs, name)
}

func (s *StaticSource) Fail(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[name] = err
}

func (s *StaticSource) Delay(name string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay[name] = d
}

func (s *StaticSource) Calls(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[name]
}

func (s *StaticSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	s.calls[name]++
	d := s.delay[name]
	body, ok := s.bodies[name]
	err := s.errs[name]
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &SourceError{Source: name, StatusCode: http.StatusNotFound, Reason: "not found", Err: ErrSourceUnavailable}
	}
	return body, nil
}
