package mail

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/gmail/v1"
)

func decodeBody(data string) (string, bool) {
	if data == "" {
		return "", false
	}
	d, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail sometimes omits the padding.
		d, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", false
		}
	}
	return string(d), true
}

// messageBody prefers text/plain and falls back to text/html rendered as
// text. Multipart payloads are walked one level deep.
func messageBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	p := msg.Payload
	if len(p.Parts) == 0 && p.Body != nil {
		text, ok := decodeBody(p.Body.Data)
		if !ok {
			return ""
		}
		if p.MimeType == "text/html" {
			return htmlToText(text)
		}
		return text
	}

	for _, mime := range []string{"text/plain", "text/html"} {
		for _, part := range p.Parts {
			if part.Body == nil || part.MimeType != mime {
				continue
			}
			text, ok := decodeBody(part.Body.Data)
			if !ok {
				continue
			}
			if mime == "text/html" {
				return htmlToText(text)
			}
			return text
		}
	}
	return ""
}

var blockElements = "p, div, br, tr, li, h1, h2, h3, h4, table"

// htmlToText keeps one line per block element and appends each link target
// after its anchor text so job URLs survive.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		a.SetText(strings.TrimSpace(a.Text()) + " " + href)
	})
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" || (len(lines) > 0 && lines[len(lines)-1] != "") {
			lines = append(lines, line)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func headerMap(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[strings.ToLower(h.Name)] = h.Value
	}
	return res
}
