// Package header rebuilds a flat table from the production-balance report.
//
// The report is not a regular CSV: the first line is a banner carrying the
// reporting period, the column names are split across two physical rows, and
// the data starts a few rows further down. Normalize turns it into the same
// records.Table shape the plain parser produces.
package header

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"plantload/internal/coerce"
	"plantload/pkg/records"
)

// Positions inside the body (the lines after the banner).
const (
	headerRow1 = 2
	headerRow2 = 3
	firstData  = 5
)

// Period column names appended to every data row.
const (
	ColumnFrom = "Od"
	ColumnTo   = "Do"
)

// ErrShortReport is returned when the body has no room for the two header
// rows.
var ErrShortReport = errors.New("balance report too short for a two-row header")

var (
	fromRe = regexp.MustCompile(`Od\s+(\d{2}\.\d{2}\.\d{4})`)
	toRe   = regexp.MustCompile(`Do\s+(\d{2}\.\d{2}\.\d{4})`)
)

// Period is the reporting window printed in the banner. A nil bound means
// the banner did not carry it.
type Period struct {
	From *time.Time
	To   *time.Time
}

// ParsePeriod extracts "Od DD.MM.YYYY" and "Do DD.MM.YYYY" from the banner.
// It never fails; missing or malformed tokens leave the bound nil.
func ParsePeriod(banner string) Period {
	var p Period
	p.From = match(fromRe, banner)
	p.To = match(toRe, banner)
	return p
}

func match(re *regexp.Regexp, s string) *time.Time {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	t, ok := coerce.ParseDate(m[1])
	if !ok {
		return nil
	}
	return &t
}

// Synthesize combines two header fragments position by position: both cells
// are trimmed, joined with a space, and then stripped of dots, slashes and
// spaces. ("QL", "TOT Akt") becomes "QLTOTAkt". The shorter row is padded
// with blanks.
func Synthesize(row1, row2 []string) []string {
	n := max(len(row1), len(row2))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		a := strings.TrimSpace(cell(row1, i))
		b := strings.TrimSpace(cell(row2, i))
		name := strings.TrimSpace(a + " " + b)
		out[i] = strings.NewReplacer(".", "", "/", "", " ", "").Replace(name)
	}
	return out
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// Normalize turns the lines of a balance report into a table. Line 0 is the
// banner. Fully blank data rows are dropped, duplicate column names keep the
// first column, and the Od/Do period columns are appended to every row as
// DD.MM.YYYY strings (nil when the banner lacks them).
func Normalize(lines [][]string) (records.Table, error) {
	if len(lines) == 0 {
		return records.Table{}, ErrShortReport
	}
	body := lines[1:]
	if len(body) <= headerRow2 {
		return records.Table{}, ErrShortReport
	}
	period := ParsePeriod(strings.Join(lines[0], " "))
	names := Synthesize(body[headerRow1], body[headerRow2])

	var data [][]string
	if len(body) > firstData {
		for _, line := range body[firstData:] {
			if !blank(line) {
				data = append(data, line)
			}
		}
	}
	t := records.FromLines(names, data)

	from, to := format(period.From), format(period.To)
	t.Columns = appendMissing(t.Columns, ColumnFrom, ColumnTo)
	for _, r := range t.Rows {
		r[ColumnFrom] = from
		r[ColumnTo] = to
	}
	return t, nil
}

func blank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func format(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(coerce.DateLayout)
}

func appendMissing(cols []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, c := range cols {
			if c == n {
				found = true
				break
			}
		}
		if !found {
			cols = append(cols, n)
		}
	}
	return cols
}
