package results

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/mbolis/quick-survey/model"
)

const (
	headerSubmittedAt = "Data wypełnienia"
	headerEmail       = "Email"

	submittedAtLayout = "02.01.2006, 15:04:05"
	multiSeparator    = ", "
)

type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// BuildTable lays responses out with one column per question, in survey
// order. Timestamps are shown in loc.
func BuildTable(s model.Survey, responses []model.SurveyResponse, loc *time.Location) Table {
	if loc == nil {
		loc = time.UTC
	}

	t := Table{
		Header: make([]string, 0, 2+len(s.Questions)),
		Rows:   make([][]string, 0, len(responses)),
	}
	t.Header = append(t.Header, headerSubmittedAt, headerEmail)
	for _, q := range s.Questions {
		t.Header = append(t.Header, q.Title)
	}

	for _, r := range responses {
		row := make([]string, 0, len(t.Header))
		email := ""
		if r.Email != nil {
			email = *r.Email
		}
		row = append(row, r.CreatedAt.In(loc).Format(submittedAtLayout), email)
		for _, q := range s.Questions {
			row = append(row, r.Responses[q.ID].Flatten(multiSeparator))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// WriteCSV writes the table with every field quoted and inner quotes
// doubled. Lines are separated by a bare newline.
func WriteCSV(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	writeRow(bw, t.Header)
	for _, row := range t.Rows {
		bw.WriteByte('\n')
		writeRow(bw, row)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(c, `"`, `""`))
		w.WriteByte('"')
	}
}

func FileName(s model.Survey) string {
	return s.Title + "_odpowiedzi.csv"
}
