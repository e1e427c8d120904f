// Package web holds the single-page chat UI served at /.
package web

import _ "embed"

// IndexHTML is the chat page. It talks to POST /chat and renders response_html.
//
//go:embed index.html
var IndexHTML string
