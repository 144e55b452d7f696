package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/meltforce/gymbot/internal/models"
)

// historyWindow is the trailing period shown by /history.
const historyWindow = 14 * 24 * time.Hour

// DayGroup is one (calendar date, template) group in the history list.
type DayGroup struct {
	Date     string // ISO date
	Template string
	SetCount int
}

// ExerciseSummary aggregates one exercise within a day group. Volume is
// sets x weight x reps summed over the logged sets.
type ExerciseSummary struct {
	Name   string
	Sets   int
	Volume float64
}

// BuildHistory groups logs by (calendar date, template snapshot), sorted by
// date descending, template ascending within a date.
func BuildHistory(logs []models.WorkoutLog) []DayGroup {
	type key struct {
		date     string
		template string
	}
	counts := make(map[key]int)
	for _, l := range logs {
		k := key{l.CreatedAt.Format("2006-01-02"), l.TemplateName}
		counts[k]++
	}

	groups := make([]DayGroup, 0, len(counts))
	for k, n := range counts {
		groups = append(groups, DayGroup{Date: k.date, Template: k.template, SetCount: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Date != groups[j].Date {
			return groups[i].Date > groups[j].Date
		}
		return groups[i].Template < groups[j].Template
	})
	return groups
}

// BuildDayDetail aggregates one day+template group by exercise name,
// preserving first-seen order of exercises within the group.
func BuildDayDetail(logs []models.WorkoutLog, date, template string) []ExerciseSummary {
	var order []string
	byName := make(map[string]*ExerciseSummary)

	for _, l := range logs {
		if l.CreatedAt.Format("2006-01-02") != date || l.TemplateName != template {
			continue
		}
		s, ok := byName[l.ExerciseName]
		if !ok {
			s = &ExerciseSummary{Name: l.ExerciseName}
			byName[l.ExerciseName] = s
			order = append(order, l.ExerciseName)
		}
		s.Sets += l.Sets
		s.Volume += float64(l.Sets) * l.Weight * float64(l.Reps)
	}

	result := make([]ExerciseSummary, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result
}

func (e *Engine) handleHistory(ctx context.Context, ev Event) (Reply, error) {
	logs, err := e.repo.QueryLogsSince(ctx, ev.UserID, e.now().Add(-historyWindow))
	if err != nil {
		e.log.Error("history query failed", "user", ev.UserID, "error", err)
		return reply(StateIdle, "Something went wrong fetching your history. Please try again.", nil), nil
	}
	return e.renderHistoryList(logs), nil
}

func (e *Engine) renderHistoryList(logs []models.WorkoutLog) Reply {
	if len(logs) == 0 {
		return reply(StateIdle, "No workouts in the last 2 weeks. Time to get moving! 💪", nil)
	}

	groups := BuildHistory(logs)
	keyboard := make([][]Button, 0, len(groups))
	for _, g := range groups {
		date, _ := time.Parse("2006-01-02", g.Date)
		label := fmt.Sprintf("📅 %s - %s (%d sets)", date.Format("Jan 02, 2006"), g.Template, g.SetCount)
		if g.Template == "" {
			label = fmt.Sprintf("📅 %s (%d sets)", date.Format("Jan 02, 2006"), g.SetCount)
		}
		keyboard = append(keyboard, []Button{{Label: label, Tag: tagHistoryDay(g.Date, g.Template)}})
	}
	return reply(StateIdle, "🏋️ Your workouts from the last 2 weeks:", keyboard)
}

func (e *Engine) handleHistoryDay(ctx context.Context, ev Event, a Action) (Reply, error) {
	logs, err := e.repo.QueryLogsSince(ctx, ev.UserID, e.now().Add(-historyWindow))
	if err != nil {
		e.log.Error("history query failed", "user", ev.UserID, "error", err)
		return reply(StateIdle, "Something went wrong fetching your history. Please try again.", nil), nil
	}

	summaries := BuildDayDetail(logs, a.Date, a.Template)
	if len(summaries) == 0 {
		return reply(StateIdle, fmt.Sprintf("No exercises logged on %s.", a.Date), nil), nil
	}

	date, _ := time.Parse("2006-01-02", a.Date)
	text := fmt.Sprintf("💪 Workout on %s", date.Format("January 02, 2006"))
	if a.Template != "" {
		text += " - " + a.Template
	}
	text += ":\n\n"
	for _, s := range summaries {
		text += fmt.Sprintf("• %s: %d set(s), %.1fkg volume\n", s.Name, s.Sets, s.Volume)
	}

	keyboard := [][]Button{{{Label: "⬅️ Back", Tag: "hist_back"}}}
	return reply(StateIdle, text, keyboard), nil
}
