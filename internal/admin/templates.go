package admin

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/tkingovr/portal/api"
)

type navItem struct {
	Page, Href, Label string
}

var navItems = []navItem{
	{"overview", "/", "Overview"},
	{"access", "/access", "Access Log"},
	{"routes", "/routes", "Routes"},
	{"policy", "/policy", "Policy"},
}

var funcMap = template.FuncMap{
	"upper":   strings.ToUpper,
	"join":    strings.Join,
	"methods": joinMethods,
	"badge":   statusColor,
	"short":   func(s string) string { return truncate(s, 80) },
	"clock":   func(t time.Time) string { return t.Format("15:04:05") },
	"nav":     func() []navItem { return navItems },
	"round":   func(d time.Duration) time.Duration { return d.Round(time.Microsecond) },
	"dict":    dict,
}

// dict builds a map from alternating keys and values, for passing several
// values to a partial.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, _ := kv[i].(string)
		m[k] = kv[i+1]
	}
	return m
}

var base = template.Must(template.New("layout").Funcs(funcMap).Parse(layoutHTML + partialsHTML))

var pages = map[string]*template.Template{
	"overview": page(overviewHTML),
	"access":   page(accessHTML),
	"routes":   page(routesHTML),
	"policy":   page(policyHTML),
}

func page(content string) *template.Template {
	return template.Must(template.Must(base.Clone()).Parse(content))
}

func renderPage(w http.ResponseWriter, name string, data map[string]any) {
	t, ok := pages[name]
	if !ok {
		http.Error(w, "no such page: "+name, http.StatusInternalServerError)
		return
	}
	data["Page"] = name
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, "rendering "+name+": "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// renderRow renders one access log table row on a single line, as an SSE
// data field requires.
func renderRow(rec *api.AccessRecord) (string, error) {
	var buf bytes.Buffer
	if err := base.ExecuteTemplate(&buf, "row", rec); err != nil {
		return "", err
	}
	return strings.ReplaceAll(buf.String(), "\n", ""), nil
}

const layoutHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Portal Admin · {{.Page}}</title>
  <script src="https://cdn.tailwindcss.com"></script>
  <script src="https://unpkg.com/htmx.org@2.0.4"></script>
  <script src="https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"></script>
</head>
<body class="min-h-screen bg-slate-950 text-slate-200">
  <header class="border-b border-slate-800 bg-slate-900">
    <nav class="mx-auto flex max-w-6xl items-center gap-6 px-6 py-3">
      <a href="/" class="font-semibold tracking-wide text-white">Portal Admin</a>
      {{$page := .Page}}{{range nav}}
      <a href="{{.Href}}" class="text-sm {{if eq .Page $page}}text-white underline underline-offset-8{{else}}text-slate-400 hover:text-slate-200{{end}}">{{.Label}}</a>
      {{end}}
    </nav>
  </header>
  <main class="mx-auto max-w-6xl px-6 py-8">
    {{template "content" .}}
  </main>
</body>
</html>`

const partialsHTML = `
{{define "counts"}}
<section class="rounded-md border border-slate-800 bg-slate-900 p-5">
  <h2 class="mb-3 text-sm font-semibold uppercase text-slate-400">{{.Title}}</h2>
  <dl class="divide-y divide-slate-800 text-sm">
  {{range $k, $v := .Counts}}
    <div class="flex justify-between py-1"><dt class="font-mono">{{$k}}</dt><dd>{{$v}}</dd></div>
  {{else}}
    <p class="text-slate-500">{{.Empty}}</p>
  {{end}}
  </dl>
</section>
{{end}}

{{define "row"}}
<tr class="border-t border-slate-800">
<td class="px-3 py-1.5 text-xs text-slate-400">{{clock .Timestamp}}</td>
<td class="px-3 py-1.5">{{.Method}}</td>
<td class="px-3 py-1.5 font-mono">{{short .Path}}</td>
<td class="px-3 py-1.5"><span class="rounded px-1.5 py-0.5 text-xs {{badge .Status}}">{{.Status}}</span></td>
<td class="px-3 py-1.5 text-xs text-slate-400">{{.Kind}}{{if .Field}} ({{.Field}}){{end}}</td>
<td class="px-3 py-1.5 text-xs text-slate-400">{{round .Duration}}</td>
</tr>
{{end}}
`

const overviewHTML = `{{define "content"}}
<h1 class="mb-6 text-xl font-semibold">Overview</h1>
<div class="mb-8 grid grid-cols-3 gap-4">
  <div class="rounded-md border border-slate-800 p-5"><p class="text-sm text-slate-400">Requests</p><p class="text-3xl">{{.Stats.TotalRequests}}</p></div>
  <div class="rounded-md border border-emerald-900 p-5"><p class="text-sm text-emerald-400">Matched</p><p class="text-3xl">{{.Stats.MatchedCount}}</p></div>
  <div class="rounded-md border border-rose-900 p-5"><p class="text-sm text-rose-400">Rejected</p><p class="text-3xl">{{.Stats.RejectedCount}}</p></div>
</div>
<div class="grid grid-cols-3 gap-4">
  {{template "counts" dict "Title" "Methods" "Counts" .Stats.ByMethod "Empty" "No data yet"}}
  {{template "counts" dict "Title" "Status codes" "Counts" .Stats.ByStatus "Empty" "No data yet"}}
  {{template "counts" dict "Title" "Rejections" "Counts" .Stats.ByKind "Empty" "No rejections"}}
</div>
{{end}}`

const accessHTML = `{{define "content"}}
<div class="mb-6 flex items-baseline justify-between">
  <h1 class="text-xl font-semibold">Access Log</h1>
  <span class="text-xs text-slate-500">streaming</span>
</div>
<table class="w-full text-left text-sm">
  <thead class="text-xs uppercase text-slate-500">
    <tr><th class="px-3 py-2">Time</th><th class="px-3 py-2">Method</th><th class="px-3 py-2">Path</th><th class="px-3 py-2">Status</th><th class="px-3 py-2">Rejection</th><th class="px-3 py-2">Took</th></tr>
  </thead>
  <tbody hx-ext="sse" sse-connect="/access/stream" sse-swap="access" hx-swap="afterbegin">
    {{range .Records}}{{template "row" .}}{{end}}
  </tbody>
</table>
{{end}}`

const routesHTML = `{{define "content"}}
<h1 class="mb-2 text-xl font-semibold">Routes</h1>
<p class="mb-6 text-sm text-slate-400">Tried top to bottom; the first match replies.</p>
<table class="w-full text-left text-sm">
  <thead class="text-xs uppercase text-slate-500">
    <tr><th class="px-3 py-2">Name</th><th class="px-3 py-2">Methods</th><th class="px-3 py-2">Path</th><th class="px-3 py-2">Action</th><th class="px-3 py-2">Captures</th><th class="px-3 py-2">Guards</th></tr>
  </thead>
  <tbody>
  {{range .Routes}}
    <tr class="border-t border-slate-800">
      <td class="px-3 py-1.5 font-semibold">{{.Name}}</td>
      <td class="px-3 py-1.5 text-xs">{{methods .Methods}}</td>
      <td class="px-3 py-1.5 font-mono">{{.Path}}</td>
      <td class="px-3 py-1.5 text-xs">{{.Action}}</td>
      <td class="px-3 py-1.5 font-mono text-xs">{{join .Captures ", "}}</td>
      <td class="px-3 py-1.5 text-xs text-slate-400">{{join .Guards ", "}}</td>
    </tr>
  {{end}}
  </tbody>
</table>
{{end}}`

const policyHTML = `{{define "content"}}
<div class="mb-6 flex items-baseline gap-3">
  <h1 class="text-xl font-semibold">Active Policy</h1>
  <span class="rounded bg-slate-800 px-2 py-0.5 text-xs">{{upper .Kind}}</span>
</div>
{{if .Source}}
<pre class="overflow-x-auto rounded-md border border-slate-800 bg-slate-900 p-5 font-mono text-sm">{{.Source}}</pre>
{{else}}
<p class="text-slate-500">No policy configured</p>
{{end}}
{{end}}`
