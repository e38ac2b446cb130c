package templating

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/CTAG07/acfget/pkg/fields"
)

type image struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type file struct {
	ID    int64
	URL   string
	Title string
}

// label is the anchor text of a file: its title, or the last path element of
// its URL.
func (f file) label() string {
	if f.Title != "" {
		return f.Title
	}
	return path.Base(f.URL)
}

type link struct {
	URL    string
	Title  string
	Target string
}

// recordInt reads an integer id from the first present key of rec.
func recordInt(rec fields.Record, keys ...string) int64 {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || fields.IsNull(v) {
			continue
		}
		return int64(leadingFloat(fields.Stringify(v)))
	}
	return 0
}

// normalizeImage accepts an attachment id, an image record or an absolute URL.
func (f *formatter) normalizeImage(ctx context.Context, v fields.Value) (image, bool) {
	if n, ok := fields.ToFloat(v); ok {
		att, ok := f.src.Attachment(ctx, int64(n))
		if !ok || att.URL == "" {
			return image{}, false
		}
		return image{ID: att.ID, URL: att.URL, Alt: att.Alt}, true
	}

	switch t := v.(type) {
	case fields.Record:
		img := image{URL: fields.Stringify(t["url"]), ID: recordInt(t, "ID", "id")}
		if img.URL == "" {
			return image{}, false
		}
		if alt, ok := t["alt"]; ok && !fields.IsNull(alt) {
			img.Alt = fields.Stringify(alt)
		} else if img.ID > 0 {
			if att, ok := f.src.Attachment(ctx, img.ID); ok {
				img.Alt = att.Alt
			}
		}
		return img, true
	case fields.String:
		if s := strings.TrimSpace(string(t)); isURL(s) {
			return image{URL: s}, true
		}
	}
	return image{}, false
}

// normalizeFile accepts an attachment id, a file record or an absolute URL.
func (f *formatter) normalizeFile(ctx context.Context, v fields.Value) (file, bool) {
	if n, ok := fields.ToFloat(v); ok {
		att, ok := f.src.Attachment(ctx, int64(n))
		if !ok || att.URL == "" {
			return file{}, false
		}
		return file{ID: att.ID, URL: att.URL, Title: att.Title}, true
	}

	switch t := v.(type) {
	case fields.Record:
		fl := file{URL: fields.Stringify(t["url"]), ID: recordInt(t, "ID", "id")}
		if fl.URL == "" {
			return file{}, false
		}
		if title, ok := t["title"]; ok && !fields.IsNull(title) {
			fl.Title = fields.Stringify(title)
		} else if fl.ID > 0 {
			if att, ok := f.src.Attachment(ctx, fl.ID); ok {
				fl.Title = att.Title
			}
		}
		return fl, true
	case fields.String:
		if s := strings.TrimSpace(string(t)); isURL(s) {
			return file{URL: s}, true
		}
	}
	return file{}, false
}

// normalizeLink accepts a link record (url, title, target) or an absolute URL.
func normalizeLink(v fields.Value) (link, bool) {
	switch t := v.(type) {
	case fields.Record:
		return link{
			URL:    fields.Stringify(t["url"]),
			Title:  fields.Stringify(t["title"]),
			Target: fields.Stringify(t["target"]),
		}, true
	case fields.String:
		if s := strings.TrimSpace(string(t)); isURL(s) {
			return link{URL: s, Title: s}, true
		}
	}
	return link{}, false
}

func isLinkRecord(v fields.Value) bool {
	rec, ok := v.(fields.Record)
	if !ok {
		return false
	}
	_, ok = rec["target"]
	return ok
}

// renderMedia renders v as markup for the "as" attribute. It returns the
// empty string when v cannot be normalized into the requested shape.
func (f *formatter) renderMedia(ctx context.Context, v fields.Value, p Params) string {
	attr := ""
	if a := strings.TrimSpace(p.Attr); a != "" {
		attr = " " + a
	}

	switch as := strings.ToLower(strings.TrimSpace(p.As)); as {
	case "img", "url", "id", "array":
		img, ok := f.normalizeImage(ctx, v)
		if !ok {
			return ""
		}
		switch as {
		case "url":
			return escapeHTML(img.URL)
		case "id":
			return fields.FormatNumber(float64(img.ID))
		case "array":
			b, err := json.Marshal(img)
			if err != nil {
				return ""
			}
			return escapeHTML(string(b))
		}
		alt := img.Alt
		if p.Alt != "" {
			alt = p.Alt
		}
		title := ""
		if p.Title != "" {
			title = ` title="` + escapeHTML(p.Title) + `"`
		}
		return `<img src="` + escURL(img.URL) + `" alt="` + escapeHTML(alt) + `"` + title + attr + ` />`

	case "link", "a":
		if isLinkRecord(v) {
			return renderLink(v, p, attr)
		}
		fl, ok := f.normalizeFile(ctx, v)
		if !ok {
			return ""
		}
		label := fl.label()
		if p.Title != "" {
			label = p.Title
		}
		return `<a href="` + escURL(fl.URL) + `"` + attr + `>` + escapeHTML(label) + `</a>`

	case "title":
		l, ok := normalizeLink(v)
		if !ok {
			return ""
		}
		return escapeHTML(l.Title)
	}
	return ""
}

func renderLink(v fields.Value, p Params, attr string) string {
	l, ok := normalizeLink(v)
	if !ok {
		return ""
	}
	target := ""
	if l.Target != "" {
		target = ` target="` + escapeHTML(l.Target) + `"`
	}
	title := ""
	if p.Title != "" {
		title = ` title="` + escapeHTML(p.Title) + `"`
	}
	return `<a href="` + escURL(l.URL) + `"` + target + title + attr + `>` + escapeHTML(l.Title) + `</a>`
}

// renderValue renders the resolved value of a request without a template
// body. Lists are trimmed to limit and joined with sep, each item rendered as
// media when "as" is set. Other values are rendered as media when possible and
// otherwise stringified and escaped.
func (f *formatter) renderValue(ctx context.Context, v fields.Value, p Params, sep string) string {
	as := strings.TrimSpace(p.As)
	if list, ok := v.(fields.List); ok {
		items := applyLimit(list, p.Limit)
		if as != "" {
			out := make([]string, 0, len(items))
			for _, item := range items {
				if s := f.renderMedia(ctx, item, p); s != "" {
					out = append(out, s)
				}
			}
			return strings.Join(out, sep)
		}
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fields.Stringify(item)
		}
		return escapeHTML(strings.Join(parts, sep))
	}

	if as != "" {
		if s := f.renderMedia(ctx, v, p); s != "" {
			return s
		}
	}
	return escapeHTML(fields.Stringify(v))
}

// applyLimit keeps the first n items. A negative n drops -n items from the
// end; an empty limit keeps everything.
func applyLimit(list fields.List, limit string) fields.List {
	limit = strings.TrimSpace(limit)
	if limit == "" {
		return list
	}
	n := int(leadingFloat(limit))
	switch {
	case n >= len(list):
		return list
	case n >= 0:
		return list[:n]
	case -n >= len(list):
		return fields.List{}
	default:
		return list[:len(list)+n]
	}
}
