package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/ryanuber/columnize"
	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/postai/internal/registry"
	"github.com/mark3labs/postai/internal/spec"
	"github.com/mark3labs/postai/internal/store"
)

var swaggerRe = regexp.MustCompile(`(?is)^swagger\s+(save|load|list|loaded|deleteall|delete|use|remove|clear|select)\b\s*(.*)$`)

// Aliases accepted for storage subcommands.
var swaggerAliases = map[string]string{
	"remove": "delete",
	"clear":  "deleteall",
	"select": "use",
}

// maxParallelLoads bounds concurrent store reads for "swagger load a,b".
const maxParallelLoads = 4

// previewEndpoints is how many endpoints are listed after a URL load.
const previewEndpoints = 5

func isSwaggerCommand(_ *Session, turn string) bool {
	return swaggerRe.MatchString(turn)
}

const swaggerUsage = `Document commands:
- swagger save <name>        save the current document
- swagger save <url> <name>  load a document by URL and save it
- swagger load <name>        load a saved document
- swagger load <a,b,...>     load several saved documents
- swagger load all           load every saved document
- swagger use <name>         switch to a loaded document
- swagger loaded             list loaded documents
- swagger list               list saved documents
- swagger delete <name>      delete a saved document
- swagger deleteall          delete every saved document`

func (p *Pipeline) handleSwagger(ctx context.Context, s *Session, turn string) []Message {
	m := swaggerRe.FindStringSubmatch(turn)
	sub, args := strings.ToLower(m[1]), strings.TrimSpace(m[2])
	if alias, ok := swaggerAliases[sub]; ok {
		sub = alias
	}
	if p.Store == nil && sub != "use" && sub != "loaded" {
		return []Message{say("No document store is configured.")}
	}
	switch sub {
	case "save":
		if source, name, ok := saveFromURL(args); ok {
			return p.loadAndSave(ctx, s, source, name)
		}
		return p.saveDocument(ctx, args)
	case "load":
		return p.loadDocuments(ctx, s, args)
	case "list":
		return p.listSaved(ctx)
	case "loaded":
		return p.listLoaded()
	case "delete":
		return p.deleteDocument(ctx, s, args)
	case "deleteall":
		return p.deleteAll(ctx, s)
	case "use":
		return p.useDocument(s, args)
	}
	return []Message{say(swaggerUsage)}
}

func (p *Pipeline) saveDocument(ctx context.Context, name string) []Message {
	doc := p.Registry.Current()
	if doc == nil {
		return []Message{say("There is no document to save. Load one first, for example by its URL.")}
	}
	if name == "" {
		return []Message{say("Name the document to save: swagger save <name>")}
	}
	key := store.Sanitize(name)
	if err := p.Store.Save(ctx, key, doc); err != nil {
		p.Logger.Error("save document", "name", key, "error", err)
		return []Message{say("The document could not be saved: %v", err)}
	}
	p.Registry.Add(key, doc)
	return []Message{say("Saved %q as '%s'.", doc.Title, key)}
}

// saveFromURL splits the arguments of "swagger save <url> <name>", which
// saves a document that is not loaded yet.
func saveFromURL(args string) (source, name string, ok bool) {
	fields := strings.Fields(args)
	if len(fields) < 2 || urlRe.FindString(fields[0]) != fields[0] {
		return "", "", false
	}
	return firstURL(fields[0]), strings.Join(fields[1:], " "), true
}

func (p *Pipeline) loadAndSave(ctx context.Context, s *Session, source, name string) []Message {
	out, ok := p.loadURL(ctx, s, source)
	if !ok {
		return out
	}
	// Keep the load summary and drop the save hint.
	return append(out[:len(out)-1:len(out)-1], p.saveDocument(ctx, name)...)
}

type loaded struct {
	name string
	doc  *spec.Document
	err  error
}

func (p *Pipeline) loadDocuments(ctx context.Context, s *Session, args string) []Message {
	var names []string
	all := args == "" || strings.EqualFold(args, "all")
	if all {
		saved, err := p.Store.List(ctx)
		if err != nil {
			return []Message{say("Saved documents could not be listed: %v", err)}
		}
		if len(saved) == 0 {
			return []Message{say("There are no saved documents to load.")}
		}
		names = saved
	} else {
		for _, n := range strings.Split(args, ",") {
			if n = store.Sanitize(strings.TrimSpace(n)); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		return []Message{say("Name the document to load: swagger load <name>")}
	}

	results := make([]loaded, len(names))
	var g errgroup.Group
	g.SetLimit(maxParallelLoads)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			doc, err := p.Store.Load(ctx, name)
			results[i] = loaded{name: name, doc: doc, err: err}
			return nil
		})
	}
	_ = g.Wait()

	// The registry is only touched here, after the fan-out.
	var (
		merr *multierror.Error
		ok   []loaded
	)
	for _, r := range results {
		if r.err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		p.Registry.Add(r.name, r.doc)
		ok = append(ok, r)
	}
	if len(ok) > 0 {
		// "all" selects the first saved document, an explicit list the last.
		current := ok[len(ok)-1]
		if all {
			current = ok[0]
		}
		p.Registry.SetCurrent(current.doc, current.name)
		s.Pending = nil
	}

	var out []Message
	switch {
	case len(ok) == 1 && merr == nil:
		out = append(out, say("Loaded '%s'.", ok[0].name), say("%s", describeDocument(ok[0].doc)))
	case len(ok) > 0:
		lines := make([]string, 0, len(ok))
		for _, r := range ok {
			lines = append(lines, fmt.Sprintf("- %s: %s", r.name, oneLine(r.doc)))
		}
		out = append(out, say("Loaded %d documents. Current: '%s'.", len(ok), p.Registry.CurrentName()),
			code("", strings.Join(lines, "\n")))
	}
	if err := merr.ErrorOrNil(); err != nil {
		p.Logger.Warn("documents failed to load", "error", err)
		lines := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			lines = append(lines, "- "+loadFailure(e))
		}
		out = append(out, say("%d document(s) could not be loaded:", len(merr.Errors)), code("", strings.Join(lines, "\n")))
		var nf *store.NotFoundError
		if errors.As(err, &nf) {
			out = append(out, say("Use 'swagger list' to see the saved documents."))
		}
	}
	return out
}

func loadFailure(err error) string {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return fmt.Sprintf("%s: not saved", nf.Name)
	}
	return err.Error()
}

func (p *Pipeline) listSaved(ctx context.Context) []Message {
	names, err := p.Store.List(ctx)
	if err != nil {
		return []Message{say("Saved documents could not be listed: %v", err)}
	}
	if len(names) == 0 {
		return []Message{say("There are no saved documents. Save the current one with 'swagger save <name>'.")}
	}
	return []Message{say("Saved documents:"), code("", strings.Join(names, "\n"))}
}

func (p *Pipeline) listLoaded() []Message {
	out := p.listLoadedNames()
	if urls := p.Registry.RecentURLs(); len(urls) > 0 {
		out = append(out, say("Recently loaded URLs, newest first:"), code("", strings.Join(urls, "\n")))
	}
	return out
}

func (p *Pipeline) listLoadedNames() []Message {
	names := p.Registry.ListNames()
	if len(names) == 0 {
		return []Message{say("No documents are loaded.")}
	}
	rows := []string{" | NAME | TITLE | SPEC | ENDPOINTS"}
	for _, n := range names {
		doc, _ := p.Registry.Get(n)
		marker := ""
		if n == p.Registry.CurrentName() {
			marker = "*"
		}
		rows = append(rows, fmt.Sprintf("%s | %s | %s | %s | %d", marker, n, doc.Title, doc.SpecVersion, len(doc.Endpoints)))
	}
	return []Message{
		say("Loaded documents (%d), * marks the current one:", len(names)),
		code("", columnize.SimpleFormat(rows)),
		say("Switch with 'swagger use <name>'."),
	}
}

func (p *Pipeline) deleteDocument(ctx context.Context, s *Session, name string) []Message {
	if name == "" {
		return []Message{say("Name the document to delete: swagger delete <name>")}
	}
	key := store.Sanitize(name)
	err := p.Store.Delete(ctx, key)
	unloaded := p.removeLoaded(s, key)

	var nf *store.NotFoundError
	switch {
	case errors.As(err, &nf) && !unloaded:
		return []Message{say("There is no document named '%s'. Use 'swagger list' to see the saved ones.", key)}
	case err != nil && !errors.As(err, &nf):
		p.Logger.Error("delete document", "name", key, "error", err)
		return []Message{say("The document could not be deleted: %v", err)}
	}
	out := []Message{say("Deleted '%s'.", key)}
	if unloaded {
		out = append(out, p.currentNotice())
	}
	return out
}

// removeLoaded drops name from the registry and any pending request built
// against it.
func (p *Pipeline) removeLoaded(s *Session, name string) bool {
	wasCurrent := registry.Normalize(name) == p.Registry.CurrentName()
	if !p.Registry.Remove(name) {
		return false
	}
	if wasCurrent {
		s.Pending = nil
	}
	return true
}

func (p *Pipeline) currentNotice() Message {
	if name := p.Registry.CurrentName(); name != "" {
		return say("Current document: '%s'.", name)
	}
	return say("No documents are loaded now.")
}

func (p *Pipeline) deleteAll(ctx context.Context, s *Session) []Message {
	n, err := p.Store.DeleteAll(ctx)
	if err != nil {
		p.Logger.Error("delete all documents", "error", err)
		return []Message{say("Saved documents could not be deleted: %v", err)}
	}
	loadedCount := p.Registry.Len()
	p.Registry.Clear()
	s.Pending = nil
	if n == 0 && loadedCount == 0 {
		return []Message{say("There are no documents to delete.")}
	}
	return []Message{say("Deleted %d saved document(s) and unloaded %d.", n, loadedCount)}
}

func (p *Pipeline) useDocument(s *Session, name string) []Message {
	if name == "" {
		return []Message{say("Name the document to switch to: swagger use <name>")}
	}
	if !p.Registry.SetCurrentByName(name) {
		return []Message{
			say("No loaded document is named '%s'.", registry.Normalize(name)),
			say("Use 'swagger loaded' to see the loaded documents, or 'swagger load %s' to load a saved one.", registry.Normalize(name)),
		}
	}
	s.Pending = nil
	return []Message{say("Switched to '%s'.", p.Registry.CurrentName()), say("%s", describeDocument(p.Registry.Current()))}
}

var urlRe = regexp.MustCompile(`https?://[^\s"'<>]+`)

var loadWords = []string{"load", "open", "import", "swagger", "openapi", "spec", "docs", "로드", "불러", "읽어", "문서"}

// isDocumentLoad matches a bare URL or a URL phrased as a document load.
func isDocumentLoad(_ *Session, turn string) bool {
	u := urlRe.FindString(turn)
	if u == "" {
		return false
	}
	if strings.TrimSpace(turn) == u {
		return true
	}
	rest := strings.ToLower(strings.Replace(turn, u, " ", 1))
	for _, w := range loadWords {
		if strings.Contains(rest, w) {
			return true
		}
	}
	return false
}

func (p *Pipeline) handleLoadURL(ctx context.Context, s *Session, turn string) []Message {
	out, _ := p.loadURL(ctx, s, firstURL(turn))
	return out
}

func firstURL(text string) string {
	return strings.TrimRight(urlRe.FindString(text), ".,;)")
}

// loadURL fetches source, makes it the current document and reports
// whether that succeeded.
func (p *Pipeline) loadURL(ctx context.Context, s *Session, source string) ([]Message, bool) {
	doc, err := spec.Load(ctx, source, p.LoadOptions...)
	if err != nil {
		p.Logger.Warn("document load failed", "source", source, "error", err)
		return []Message{say("The API document could not be loaded: %s", specFailure(err))}, false
	}
	p.Registry.RecordURL(source)
	name := store.Sanitize(doc.Title)
	if name == "" {
		name = "default"
	}
	name = p.Registry.SetCurrent(doc, name)
	s.Pending = nil

	out := []Message{
		say("Loaded %s as '%s'.", oneLine(doc), name),
		say("%s", describeDocument(doc)),
	}
	if n := len(doc.Endpoints); n > 0 {
		shown := doc.Endpoints
		if n > previewEndpoints {
			shown = shown[:previewEndpoints]
		}
		lines := make([]string, 0, len(shown))
		for _, ep := range shown {
			lines = append(lines, fmt.Sprintf("%s %s - %s", ep.Method, ep.Path, ep.Summary))
		}
		out = append(out, say("First endpoints:"), code("", strings.Join(lines, "\n")))
	}
	out = append(out, say("Save it for later with 'swagger save %s'.", name))
	return out, true
}

func specFailure(err error) string {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err.Error()
	}
	switch se.Code {
	case spec.NetworkError:
		return se.Message + ". Check the URL and your connection."
	case spec.UnsupportedSpec:
		return se.Message + ". Only Swagger 2.0 and OpenAPI 3.x documents are supported."
	default:
		return se.Message
	}
}

func oneLine(doc *spec.Document) string {
	return fmt.Sprintf("%s (v%s, %s, %d endpoints)", doc.Title, doc.Version, doc.SpecVersion, len(doc.Endpoints))
}

func describeDocument(doc *spec.Document) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Title: %s (version %s)\n", doc.Title, doc.Version)
	fmt.Fprintf(&b, "Spec: %s\n", doc.SpecVersion)
	if doc.BaseURL != "" {
		fmt.Fprintf(&b, "Base URL: %s\n", doc.BaseURL)
	} else {
		b.WriteString("Base URL: none, set one with 'set-base-url <url>'\n")
	}
	fmt.Fprintf(&b, "Endpoints: %d", len(doc.Endpoints))
	return b.String()
}
