// Package present renders execution results for the terminal.
package present

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mark3labs/postai/internal/request"
)

type Mode string

const (
	ModeTable   Mode = "table"
	ModeJSON    Mode = "json"
	ModeSummary Mode = "summary"
	ModeError   Mode = "error"
)

const (
	// MaxPreviewBytes bounds pretty-printed and raw text previews.
	MaxPreviewBytes = 4096
	// MaxTableRows bounds the rows of a rendered table.
	MaxTableRows = 20
	// MaxCellWidth bounds a single table cell.
	MaxCellWidth = 40
)

// Presentation is a rendered result. Content is a code block in the
// given Language when Language is set.
type Presentation struct {
	Mode       Mode
	StatusLine string
	Content    string
	Language   string
	Additional string
}

// Block is one piece of display output.
type Block struct {
	Text     string
	Code     bool
	Language string
}

// Blocks splits p into display blocks in reading order. Empty parts are
// skipped.
func (p Presentation) Blocks() []Block {
	var out []Block
	if p.StatusLine != "" {
		out = append(out, Block{Text: p.StatusLine})
	}
	if p.Content != "" {
		out = append(out, Block{Text: p.Content, Code: p.Language != "", Language: p.Language})
	}
	if p.Additional != "" {
		out = append(out, Block{Text: p.Additional})
	}
	return out
}

// Present chooses a mode from the shape of the result and renders it.
func Present(r request.ExecutionResult) Presentation {
	if r.Status == request.StatusError || r.StatusCode == nil {
		return transportFailure(r)
	}
	if !r.OK() {
		return statusFailure(r)
	}

	p := Presentation{StatusLine: statusLine(r)}
	switch body := r.Body.(type) {
	case nil:
		p.Mode = ModeJSON
		p.Additional = "The response has no body."
	case string:
		p.Mode = ModeJSON
		p.Content, _ = truncate(body, MaxPreviewBytes)
	case []any:
		if cols, ok := tabular(body); ok {
			p.Mode = ModeTable
			p.Content, p.Additional = table(body, cols)
			p.Language = "markdown"
			break
		}
		p.Mode, p.Language = ModeJSON, "json"
		p.Content, p.Additional = preview(body)
	case map[string]any:
		if page, ok := paginated(body); ok {
			p.Mode = ModeSummary
			p.Content = page.render()
			p.Additional = "Use the page parameters of the endpoint to fetch more."
			break
		}
		p.Mode, p.Language = ModeJSON, "json"
		p.Content, p.Additional = preview(body)
	default:
		p.Mode, p.Language = ModeJSON, "json"
		p.Content, p.Additional = preview(body)
	}
	if r.Truncated {
		p.Additional = strings.TrimSpace(p.Additional + "\nThe response exceeded " +
			humanize.Bytes(request.MaxResponseBytes) + " and was cut off.")
	}
	return p
}

func statusLine(r request.ExecutionResult) string {
	code := *r.StatusCode
	return fmt.Sprintf("%d %s · %dms · %s", code, http.StatusText(code), r.ResponseTimeMs, humanize.Bytes(uint64(r.Size)))
}

func transportFailure(r request.ExecutionResult) Presentation {
	p := Presentation{Mode: ModeError, StatusLine: "Request failed"}
	if r.Request != "" {
		p.StatusLine += ": " + r.Request
	}
	if r.Error == nil {
		p.Content = "The request did not complete."
		return p
	}
	p.Content = r.Error.Message
	if r.Error.Code != "" {
		p.Content = fmt.Sprintf("%s (%s)", r.Error.Message, r.Error.Code)
	}
	switch r.Error.Code {
	case request.CodeTimeout:
		p.Additional = "The server did not answer in time. Check that it is up, or retry later."
	case request.CodeNotFound:
		p.Additional = "The host name could not be resolved. Check the URL or set a base URL with 'set-base-url <url>'."
	case request.CodeRefused:
		p.Additional = "Nothing is listening at that address. Check the port or that the server is running."
	case request.CodeBadRequest:
		p.Additional = "The request could not be built. Use an absolute http(s) URL or set one with 'set-base-url <url>'."
	default:
		p.Additional = "Check your network connection and the request URL."
	}
	return p
}

func statusFailure(r request.ExecutionResult) Presentation {
	p := Presentation{Mode: ModeError, StatusLine: statusLine(r)}
	switch body := r.Body.(type) {
	case nil:
	case string:
		p.Content, _ = truncate(body, MaxPreviewBytes)
	default:
		p.Content, _ = preview(body)
		p.Language = "json"
	}
	code := *r.StatusCode
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		p.Additional = "Authentication failed. Check the credentials sent in the request headers."
	case code == http.StatusNotFound:
		p.Additional = "The resource was not found. Check the path and its parameters."
	case code == http.StatusMethodNotAllowed:
		p.Additional = "The endpoint does not accept this method. Search the document for the supported ones."
	case code == http.StatusTooManyRequests:
		p.Additional = "The server is rate limiting requests. Wait before retrying."
	case code >= 500:
		p.Additional = "The server failed to handle the request. Retry later."
	case code >= 400:
		p.Additional = "The server rejected the request. Check the required parameters and the body."
	default:
		p.Additional = "The server answered with a non-success status."
	}
	return p
}

// preview pretty-prints v up to MaxPreviewBytes.
func preview(v any) (string, string) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v), ""
	}
	text, cut := truncate(string(data), MaxPreviewBytes)
	if !cut {
		return text, ""
	}
	return text, fmt.Sprintf("Showing the first %s of %s.", humanize.Bytes(MaxPreviewBytes), humanize.Bytes(uint64(len(data))))
}

const truncatedMarker = "\n... (truncated)"

// truncate cuts s to at most limit bytes on a rune boundary and appends
// the truncation marker.
func truncate(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncatedMarker, true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// tabular reports whether rows are objects sharing one key set of scalar
// values, and returns the columns.
func tabular(rows []any) ([]string, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	first, ok := rows[0].(map[string]any)
	if !ok || len(first) == 0 {
		return nil, false
	}
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok || len(m) != len(first) {
			return nil, false
		}
		for k, v := range m {
			if _, ok := first[k]; !ok || !scalar(v) {
				return nil, false
			}
		}
	}
	return columns(first), true
}

// columns orders keys alphabetically with id and name first.
func columns(m map[string]any) []string {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	rank := func(k string) int {
		switch strings.ToLower(k) {
		case "id":
			return 0
		case "name":
			return 1
		}
		return 2
	}
	sort.Slice(cols, func(i, j int) bool {
		if ri, rj := rank(cols[i]), rank(cols[j]); ri != rj {
			return ri < rj
		}
		return cols[i] < cols[j]
	})
	return cols
}

func scalar(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool:
		return true
	}
	return false
}

func table(rows []any, cols []string) (string, string) {
	var b strings.Builder
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat("---|", len(cols)) + "\n")
	shown := rows
	if len(shown) > MaxTableRows {
		shown = shown[:MaxTableRows]
	}
	for _, row := range shown {
		m := row.(map[string]any)
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(m[c])
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	note := fmt.Sprintf("%s rows.", humanize.Comma(int64(len(rows))))
	if len(rows) > len(shown) {
		note = fmt.Sprintf("Showing %d of %s rows.", len(shown), humanize.Comma(int64(len(rows))))
	}
	return strings.TrimRight(b.String(), "\n"), note
}

func cell(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = ""
	case float64:
		s = formatNumber(t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", `\|`)
	if r := []rune(s); len(r) > MaxCellWidth {
		s = string(r[:MaxCellWidth-3]) + "..."
	}
	return s
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprint(int64(f))
	}
	return humanize.Ftoa(f)
}
