package present

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

var itemKeys = []string{"items", "data", "results", "content", "records", "entries", "list"}

var pageHints = map[string]string{
	"total":       "Total",
	"totalcount":  "Total",
	"total_count": "Total",
	"totalitems":  "Total",
	"count":       "Count",
	"page":        "Page",
	"pages":       "Pages",
	"totalpages":  "Pages",
	"total_pages": "Pages",
	"limit":       "Limit",
	"per_page":    "Per page",
	"pagesize":    "Per page",
	"size":        "Per page",
	"offset":      "Offset",
	"next":        "Next",
	"cursor":      "Cursor",
}

// maxStatFields bounds the numeric fields described in a summary.
const maxStatFields = 5

type page struct {
	field string
	items []any
	hints map[string]any
}

// paginated recognizes an object that wraps a list of items together with
// paging information, at the top level or under a pagination/meta object.
func paginated(body map[string]any) (page, bool) {
	p := page{hints: make(map[string]any)}
	for _, k := range itemKeys {
		if items, ok := body[k].([]any); ok {
			p.field, p.items = k, items
			break
		}
	}
	if p.field == "" {
		// Fall back to the only array of objects in the body.
		for _, k := range sortedKeys(body) {
			items, ok := body[k].([]any)
			if !ok || len(items) == 0 {
				continue
			}
			if _, obj := items[0].(map[string]any); !obj {
				continue
			}
			if p.field != "" {
				return page{}, false
			}
			p.field, p.items = k, items
		}
	}
	if p.field == "" {
		return page{}, false
	}

	collect := func(m map[string]any) {
		for k, v := range m {
			if label, ok := pageHints[strings.ToLower(k)]; ok && scalar(v) && v != nil {
				if _, seen := p.hints[label]; !seen {
					p.hints[label] = v
				}
			}
		}
	}
	collect(body)
	for _, k := range []string{"pagination", "meta", "page", "paging", "page_info", "pageInfo"} {
		if m, ok := body[k].(map[string]any); ok {
			collect(m)
		}
	}
	return p, len(p.hints) > 0
}

func (p page) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q: %s items in this page\n", p.field, humanize.Comma(int64(len(p.items))))

	labels := make([]string, 0, len(p.hints))
	for label := range p.hints {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, label+": "+hint(p.hints[label]))
	}
	b.WriteString(strings.Join(parts, " · "))

	for _, s := range stats(p.items) {
		fmt.Fprintf(&b, "\n%s: min %s, max %s", s.field, hint(s.min), hint(s.max))
	}
	return b.String()
}

func hint(v any) string {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return humanize.Comma(int64(t))
		}
		return humanize.Ftoa(t)
	default:
		return cell(t)
	}
}

type stat struct {
	field    string
	min, max float64
}

// stats returns min and max of numeric fields present in every item.
func stats(items []any) []stat {
	if len(items) == 0 {
		return nil
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return nil
	}
	var out []stat
	for _, k := range sortedKeys(first) {
		if strings.EqualFold(k, "id") {
			continue
		}
		s := stat{field: k, min: math.Inf(1), max: math.Inf(-1)}
		numeric := true
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				return out
			}
			f, ok := m[k].(float64)
			if !ok {
				numeric = false
				break
			}
			s.min, s.max = math.Min(s.min, f), math.Max(s.max, f)
		}
		if numeric {
			out = append(out, s)
		}
		if len(out) == maxStatFields {
			break
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
