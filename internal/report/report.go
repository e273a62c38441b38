// Package report renders batch results and the unknown-key review queue as HTML
package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"ctpty.durgadawaghar.com/internal/store"
)

// Row is one resolved narrative
type Row struct {
	Source    string
	Narrative string
	Format    string
	Payer     string
	Payee     string
	Amount    *float64
	Error     string
}

// Page wraps body components in a minimal HTML document
func Page(title string, body ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>%s</title>`+
			`<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px;text-align:left}`+
			`.error{color:#b00}</style></head><body><h1>%s</h1>`,
			templ.EscapeString(title), templ.EscapeString(title)); err != nil {
			return err
		}
		for _, c := range body {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// Results renders resolved narratives as a table
func Results(rows []Row) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t := table{w: w}
		t.open("results", "Source", "Narrative", "Format", "Payer", "Payee", "Amount")
		for _, r := range rows {
			if r.Error != "" {
				t.row("error", r.Source, r.Narrative, r.Format, r.Error, "", amount(r.Amount))
				continue
			}
			t.row("", r.Source, r.Narrative, r.Format, r.Payer, r.Payee, amount(r.Amount))
		}
		t.close(len(rows) == 0, "No narratives.")
		return t.err
	})
}

// UnknownKeys renders the review queue, most seen first as stored
func UnknownKeys(sightings []store.Sighting) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t := table{w: w}
		t.open("unknown-keys", "Label", "Spelling", "Seen", "Format", "Last narrative")
		for _, s := range sightings {
			t.row("", s.Label, s.Spelling, strconv.Itoa(s.Seen), s.Format, s.LastNarrative)
		}
		t.close(len(sightings) == 0, "No unknown keys.")
		return t.err
	})
}

func amount(a *float64) string {
	if a == nil {
		return ""
	}
	return strconv.FormatFloat(*a, 'f', 2, 64)
}

// table writes escaped cells and keeps the first write error
type table struct {
	w   io.Writer
	err error
}

func (t *table) write(s string) {
	if t.err == nil {
		_, t.err = io.WriteString(t.w, s)
	}
}

func (t *table) open(id string, headers ...string) {
	t.write(`<table id="` + templ.EscapeString(id) + `"><thead><tr>`)
	for _, h := range headers {
		t.write("<th>" + templ.EscapeString(h) + "</th>")
	}
	t.write("</tr></thead><tbody>")
}

func (t *table) row(class string, cells ...string) {
	if class != "" {
		t.write(`<tr class="` + templ.EscapeString(class) + `">`)
	} else {
		t.write("<tr>")
	}
	for _, c := range cells {
		t.write("<td>" + templ.EscapeString(c) + "</td>")
	}
	t.write("</tr>")
}

func (t *table) close(empty bool, note string) {
	t.write("</tbody></table>")
	if empty {
		t.write("<p>" + templ.EscapeString(note) + "</p>")
	}
}
