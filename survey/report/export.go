package report

import (
	"encoding/csv"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/responses"
)

const utf8BOM = "\ufeff"

// MultiSeparator joins multi-valued answers in a single cell.
const MultiSeparator = ", "

var baseColumns = []string{"id", "user_id", "username", "created_at"}

// CSVOptions tunes ExportCSV.
type CSVOptions struct {
	// BOM prefixes the output with a UTF-8 byte order mark for spreadsheet apps.
	BOM bool
}

// FileName returns the export file name for a run started at now.
func FileName(now time.Time) string {
	return "survey_data_" + now.Format("20060102_150405") + ".csv"
}

// AnswerColumns lists every observed answer key: catalog order first, then
// unknown keys sorted.
func AnswerColumns(records []responses.Record, cat *catalog.Catalog) []string {
	seen := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Answers {
			seen[k] = struct{}{}
		}
	}
	var cols []string
	if cat != nil {
		for _, q := range cat.All() {
			if _, ok := seen[q.ID]; ok {
				cols = append(cols, q.ID)
				delete(seen, q.ID)
			}
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// ExportCSV writes one row per record. Multi-valued answers are joined with
// MultiSeparator.
func ExportCSV(w io.Writer, records []responses.Record, cat *catalog.Catalog, opts CSVOptions) error {
	if opts.BOM {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return err
		}
	}
	cols := AnswerColumns(records, cat)
	cw := csv.NewWriter(w)
	if err := cw.Write(append(slices.Clone(baseColumns), cols...)); err != nil {
		return err
	}
	for _, r := range records {
		row := make([]string, 0, len(baseColumns)+len(cols))
		row = append(row,
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.UserID, 10),
			r.DisplayName(),
			r.CreatedAt.UTC().Format(time.RFC3339),
		)
		for _, c := range cols {
			a, ok := r.Answers[c]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, strings.Join(a.Flatten(), MultiSeparator))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
