package app

import (
	"time"

	"github.com/maine/news_digest/internal/news"
)

// Stage - этап тика.
type Stage int

const (
	StageIdle Stage = iota
	StageLoading
	StageFetching
	StageFiltering
	StageDelivering
	StagePersisting
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageLoading:
		return "loading"
	case StageFetching:
		return "fetching"
	case StageFiltering:
		return "filtering"
	case StageDelivering:
		return "delivering"
	case StagePersisting:
		return "persisting"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report - итог одного тика.
type Report struct {
	TickID string
	Day    string
	// Stage - StageIdle после успешного тика, StageFailed иначе.
	Stage   Stage
	Results []news.FetchResult
	// Fetched - статей от провайдеров до фильтрации, Fresh - после.
	Fetched   int
	Fresh     int
	Delivered bool
	Duration  time.Duration
}

// Failed возвращает неудачные вызовы провайдеров.
func (r Report) Failed() []news.FetchResult {
	var failed []news.FetchResult
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}
