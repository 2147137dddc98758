package view

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const layout = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			--danger: #fca5a5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min({{if .Wide}}860px{{else}}520px{{end}}, 94vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
		}
		h1 { font-size: 1.5rem; margin-bottom: 6px; word-break: break-word; }
		p { color: var(--muted); margin-top: 0; }
		.error { color: var(--danger); margin: 12px 0 0; }
		input[type=password] {
			width: 100%;
			height: 48px;
			padding: 0 16px;
			margin-top: 16px;
			border-radius: 12px;
			border: 1px solid var(--border);
			background: rgba(0,0,0,0.3);
			color: var(--text);
			font-size: 1rem;
		}
		.actions { display: flex; align-items: center; gap: 12px; margin-top: 24px; flex-wrap: wrap; }
		.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 28px;
			height: 48px;
			border: 0;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			font-size: 1rem;
			text-decoration: none;
			cursor: pointer;
		}
		.button:hover { opacity: 0.92; }
		table { width: 100%; border-collapse: collapse; margin-top: 20px; }
		th, td { text-align: left; padding: 12px 8px; border-bottom: 1px solid var(--border); }
		th { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.08em; color: var(--muted); }
		td a { color: var(--accent); text-decoration: none; }
		.size { color: var(--muted); white-space: nowrap; }
		.media { margin: 24px 0; text-align: center; }
		.media img, .media video { max-width: 100%; max-height: 70vh; border-radius: 12px; }
		.media iframe { width: 100%; min-height: 70vh; border: 0; border-radius: 12px; background: #fff; }
		.meta { margin-top: 16px; font-size: 0.85rem; color: rgba(231, 236, 255, 0.65); }
	</style>
</head>
<body>
	<div class="card">{{template "content" .}}</div>
</body>
</html>{{end}}`

// ChallengeData drives the passcode form.
type ChallengeData struct {
	Title  string
	Action string
	Inline bool
	Error  string
}

const challengeContent = `{{define "content"}}
		<h1>Passcode required</h1>
		<p>This shared item is protected. Enter the passcode to continue.</p>
		<form method="POST" action="{{.Action}}">
			<input type="password" name="passcode" placeholder="Passcode" autocomplete="off" autofocus required />
			{{if .Inline}}<input type="hidden" name="inline" value="true" />{{end}}
			{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
			<div class="actions"><button class="button" type="submit">Unlock</button></div>
		</form>
{{end}}`

// ListItem is one downloadable member of a list page.
type ListItem struct {
	Name        string
	Size        int64
	DownloadURL string
}

// ListData drives the list page.
type ListData struct {
	Title string
	Code  string
	Items []ListItem
}

const listContent = `{{define "content"}}
		<h1>Shared files</h1>
		<p>{{len .Items}} file{{if ne (len .Items) 1}}s{{end}} in list <strong>{{.Code}}</strong>.</p>
		<table>
			<thead><tr><th>Name</th><th>Size</th><th></th></tr></thead>
			<tbody>
			{{range .Items}}
				<tr>
					<td>{{.Name}}</td>
					<td class="size">{{formatBytes .Size}}</td>
					<td><a href="{{.DownloadURL}}">Download</a></td>
				</tr>
			{{end}}
			</tbody>
		</table>
{{end}}`

// PreviewData drives the preview page. MediaKind is one of image, video,
// audio, document or empty when the type cannot be shown inline.
type PreviewData struct {
	Title       string
	Name        string
	MimeType    string
	MediaKind   string
	InlineURL   string
	DownloadURL string
}

const previewContent = `{{define "content"}}
		<h1>{{.Name}}</h1>
		<div class="media">
		{{if eq .MediaKind "image"}}<img src="{{.InlineURL}}" alt="{{.Name}}" />
		{{else if eq .MediaKind "video"}}<video controls src="{{.InlineURL}}"></video>
		{{else if eq .MediaKind "audio"}}<audio controls src="{{.InlineURL}}"></audio>
		{{else if eq .MediaKind "document"}}<iframe src="{{.InlineURL}}" title="{{.Name}}"></iframe>
		{{else}}<p>No preview is available for this file type.</p>{{end}}
		</div>
		<div class="actions"><a class="button" href="{{.DownloadURL}}">Download</a></div>
		<div class="meta">{{.MimeType}}</div>
{{end}}`

// MessageData drives the generic status page.
type MessageData struct {
	Title   string
	Heading string
	Message string
}

const messageContent = `{{define "content"}}
		<h1>{{.Heading}}</h1>
		<p>{{.Message}}</p>
{{end}}`

var funcs = template.FuncMap{"formatBytes": FormatBytes}

var (
	challengeTmpl = page("challenge", challengeContent)
	listTmpl      = page("list", listContent)
	previewTmpl   = page("preview", previewContent)
	messageTmpl   = page("message", messageContent)
)

func page(name, content string) *template.Template {
	t := template.Must(template.New(name).Funcs(funcs).Parse(layout))
	return template.Must(t.Parse(content))
}

// RenderChallenge renders the passcode form.
func RenderChallenge(data ChallengeData) (string, error) {
	if data.Title == "" {
		data.Title = "Passcode required"
	}
	return render(challengeTmpl, struct {
		ChallengeData
		Wide bool
	}{data, false})
}

// RenderList renders the member listing of a list.
func RenderList(data ListData) (string, error) {
	if data.Title == "" {
		data.Title = "Shared files"
	}
	return render(listTmpl, struct {
		ListData
		Wide bool
	}{data, true})
}

// RenderPreview renders the preview page for a single file.
func RenderPreview(data PreviewData) (string, error) {
	if data.Title == "" {
		data.Title = data.Name
	}
	if data.MediaKind == "" {
		data.MediaKind = MediaKind(data.MimeType)
	}
	return render(previewTmpl, struct {
		PreviewData
		Wide bool
	}{data, true})
}

// RenderMessage renders a status page such as "not found" or "expired".
func RenderMessage(data MessageData) (string, error) {
	if data.Title == "" {
		data.Title = data.Heading
	}
	return render(messageTmpl, struct {
		MessageData
		Wide bool
	}{data, false})
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MediaKind classifies a MIME type for inline preview.
func MediaKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case mimeType == "application/pdf", strings.HasPrefix(mimeType, "text/"):
		return "document"
	}
	return ""
}

// FormatBytes renders n with a binary unit, e.g. 1536 -> "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d Bytes", n)
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") + " " + units[i]
}
