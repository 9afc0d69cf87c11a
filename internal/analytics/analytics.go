// Package analytics содержит правила временных окон и эталонную агрегацию
// статистики кликов по источникам.
package analytics

import (
	"sort"
	"strconv"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/samber/lo"
)

const (
	DefaultWindow = "24h"
	DefaultLimit  = 100
	MaxLimit      = 1000
)

var windows = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Query выбирает события для агрегации
type Query struct {
	Since  time.Time
	Domain string // пусто означает все домены
	Limit  int
}

// ResolveWindow переводит имя окна в абсолютную границу. Неизвестные имена
// означают 24h.
func ResolveWindow(window string, now time.Time) time.Time {
	d, ok := windows[window]
	if !ok {
		d = windows[DefaultWindow]
	}
	return now.Add(-d)
}

// ParseLimit превращает параметр limit в допустимое число строк
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

type group struct {
	row       models.AggregateRow
	latency   int64
	visitors  map[string]struct{}
	sessions  map[string]struct{}
	countries []string
	devices   []string
	sources   []string
}

// Summarize агрегирует события так же, как SQL хранилище: фильтр по границе
// и домену, группировка по домену, сортировка по числу кликов по убыванию
// (при равенстве по домену) и обрезка до limit. Результат не зависит от
// порядка событий.
func Summarize(events []models.ClickEvent, q Query) []models.AggregateRow {
	since := q.Since.UnixMilli()
	groups := make(map[string]*group)

	for _, e := range events {
		if e.Timestamp < since {
			continue
		}
		if q.Domain != "" && e.RefDomain != q.Domain {
			continue
		}
		g, ok := groups[e.RefDomain]
		if !ok {
			g = &group{
				row:      models.AggregateRow{RefDomain: e.RefDomain},
				visitors: make(map[string]struct{}),
				sessions: make(map[string]struct{}),
			}
			groups[e.RefDomain] = g
		}

		g.row.TotalClicks++
		switch e.Disposition {
		case models.DispositionGood:
			g.row.GoodClicks++
		case models.DispositionBad:
			g.row.BadClicks++
		case models.DispositionSuspicious:
			g.row.SuspiciousClicks++
		}
		g.latency += e.ResponseTime
		g.visitors[e.IP] = struct{}{}
		g.sessions[e.SessionID] = struct{}{}
		g.countries = append(g.countries, e.Country)
		g.devices = append(g.devices, e.DeviceType)
		g.sources = append(g.sources, string(e.SourceType))
	}

	rows := lo.MapToSlice(groups, func(_ string, g *group) models.AggregateRow {
		r := g.row
		r.AvgResponseTime = float64(g.latency) / float64(r.TotalClicks)
		r.UniqueVisitors = int64(len(g.visitors))
		r.UniqueSessions = int64(len(g.sessions))
		r.Countries = distinctSorted(g.countries)
		r.Devices = distinctSorted(g.devices)
		r.Sources = distinctSorted(g.sources)
		return r
	})

	SortRows(rows)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// SortRows сортирует строки по числу кликов по убыванию, затем по домену
func SortRows(rows []models.AggregateRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalClicks != rows[j].TotalClicks {
			return rows[i].TotalClicks > rows[j].TotalClicks
		}
		return rows[i].RefDomain < rows[j].RefDomain
	})
}

func distinctSorted(values []string) []string {
	out := lo.Uniq(lo.Compact(values))
	sort.Strings(out)
	return out
}
