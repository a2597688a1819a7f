package engine

import "time"

// Clock: порт времени: агрегатор и планировщик не обращаются к time напрямую.
type Clock interface {
	Now() time.Time
	// NewTicker возвращает канал тиков и функцию остановки.
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
