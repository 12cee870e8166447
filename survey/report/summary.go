// Package report builds read-only statistics and flat exports over stored
// survey responses.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/responses"
)

// DayCount is the number of responses stored on one calendar date.
type DayCount struct {
	Date  string
	Count int
}

// ValueCount is how often one answer value occurred for a question.
// Percent is relative to all answer occurrences of that question.
type ValueCount struct {
	Value   string
	Count   int
	Percent float64
}

// QuestionStats aggregates the answers of one question.
type QuestionStats struct {
	Question    catalog.Question
	Occurrences int
	Values      []ValueCount
	// Filled and FillRate are only meaningful for free-text questions.
	Filled   int
	FillRate float64
}

// Summary is the full reporting pass result.
type Summary struct {
	Total     int
	First     time.Time
	Last      time.Time
	Days      []DayCount
	Questions []QuestionStats
}

// ByDay counts records per calendar date of created_at in UTC, oldest first.
func ByDay(records []responses.Record) []DayCount {
	counts := map[string]int{}
	for _, r := range records {
		counts[r.CreatedAt.UTC().Format(time.DateOnly)]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]DayCount, 0, len(days))
	for _, d := range days {
		out = append(out, DayCount{Date: d, Count: counts[d]})
	}
	return out
}

// Build runs the reporting pass over records for every catalog question.
func Build(records []responses.Record, cat *catalog.Catalog) Summary {
	s := Summary{Total: len(records), Days: ByDay(records)}
	for i, r := range records {
		if i == 0 || r.CreatedAt.Before(s.First) {
			s.First = r.CreatedAt
		}
		if r.CreatedAt.After(s.Last) {
			s.Last = r.CreatedAt
		}
	}
	for _, q := range cat.All() {
		if q.Kind == catalog.FreeText {
			s.Questions = append(s.Questions, fillRate(records, q))
			continue
		}
		s.Questions = append(s.Questions, distribution(records, q))
	}
	return s
}

func distribution(records []responses.Record, q catalog.Question) QuestionStats {
	qs := QuestionStats{Question: q}
	counts := map[string]int{}
	for _, r := range records {
		a, ok := r.Answers[q.ID]
		if !ok {
			continue
		}
		for _, v := range a.Flatten() {
			counts[v]++
			qs.Occurrences++
		}
	}
	for v, n := range counts {
		vc := ValueCount{Value: v, Count: n}
		if qs.Occurrences > 0 {
			vc.Percent = float64(n) * 100 / float64(qs.Occurrences)
		}
		qs.Values = append(qs.Values, vc)
	}
	sort.Slice(qs.Values, func(i, j int) bool {
		if qs.Values[i].Count != qs.Values[j].Count {
			return qs.Values[i].Count > qs.Values[j].Count
		}
		return qs.Values[i].Value < qs.Values[j].Value
	})
	return qs
}

func fillRate(records []responses.Record, q catalog.Question) QuestionStats {
	qs := QuestionStats{Question: q}
	for _, r := range records {
		if a, ok := r.Answers[q.ID]; ok && strings.TrimSpace(a.Value()) != "" {
			qs.Filled++
		}
	}
	if len(records) > 0 {
		qs.FillRate = float64(qs.Filled) * 100 / float64(len(records))
	}
	return qs
}

// WriteSummary renders a human-readable summary.
func WriteSummary(w io.Writer, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Total responses: %d\n", s.Total)
	if s.Total == 0 {
		_, err := io.WriteString(w, b.String())
		return err
	}
	fmt.Fprintf(&b, "Period: %s .. %s\n",
		s.First.UTC().Format(time.DateTime), s.Last.UTC().Format(time.DateTime))

	b.WriteString("\nResponses per day:\n")
	for _, d := range s.Days {
		fmt.Fprintf(&b, "  %s: %d\n", d.Date, d.Count)
	}

	for _, q := range s.Questions {
		fmt.Fprintf(&b, "\n[%s] %s\n", q.Question.ID, q.Question.Prompt)
		if q.Question.Kind == catalog.FreeText {
			fmt.Fprintf(&b, "  filled: %d/%d (%.1f%%)\n", q.Filled, s.Total, q.FillRate)
			continue
		}
		if len(q.Values) == 0 {
			b.WriteString("  no answers\n")
			continue
		}
		for _, v := range q.Values {
			fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", v.Value, v.Count, v.Percent)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
