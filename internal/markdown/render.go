// Package markdown превращает ответы ассистента в безопасный HTML.
package markdown

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// policy пропускает только разметку, которую рисует чат:
// текст, ссылки, код, списки и таблицы. Всё остальное вырезается.
var policy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "del", "code", "pre", "blockquote",
		"ul", "ol", "li", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
	)
	p.AllowStandardURLs()
	p.AllowAttrs("href", "title", "target", "rel").OnElements("a")
	p.AllowAttrs("colspan", "rowspan", "align").OnElements("td", "th")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}()

// Render конвертирует markdown в HTML и прогоняет через санитайзер.
// При сбое рендера отдаёт санированный исходный текст, чтобы сообщение
// не пропадало.
func Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return policy.Sanitize(src), errors.Wrap(err, "render markdown")
	}
	return policy.Sanitize(buf.String()), nil
}
