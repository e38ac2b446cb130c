package templating

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/CTAG07/acfget/pkg/fields"
)

// Pipe is one output transform of a token, such as "upper" or "date:Y-m-d".
type Pipe struct {
	Name   string
	Arg    string
	HasArg bool
}

func (p Pipe) String() string {
	if p.HasArg {
		return p.Name + ":" + p.Arg
	}
	return p.Name
}

// ParsePipes splits the text after a token's first "|" into pipes. Empty
// entries are dropped.
func ParsePipes(s string) []Pipe {
	if s == "" {
		return nil
	}
	var pipes []Pipe
	for _, raw := range strings.Split(s, "|") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, arg, has := strings.Cut(raw, ":")
		pipes = append(pipes, Pipe{Name: strings.TrimSpace(name), Arg: arg, HasArg: has})
	}
	return pipes
}

// formatter turns resolved values into output text. Casers keep state, so a
// formatter belongs to a single render.
type formatter struct {
	src    fields.Source
	loc    *time.Location
	locale monday.Locale
	upper  cases.Caser
	lower  cases.Caser
}

func newFormatter(src fields.Source, loc *time.Location, locale string) *formatter {
	tag := languageTag(locale)
	return &formatter{
		src:    src,
		loc:    loc,
		locale: mondayLocale(locale),
		upper:  cases.Upper(tag),
		lower:  cases.Lower(tag),
	}
}

// apply runs the pipes left to right. Without pipes the value is stringified
// and HTML-escaped; with pipes the final value is stringified as is.
func (f *formatter) apply(ctx context.Context, v fields.Value, pipes []Pipe) string {
	if len(pipes) == 0 {
		return escapeHTML(fields.Stringify(v))
	}
	out := fields.OrNull(v)
	for _, p := range pipes {
		out = f.pipe(ctx, out, p)
	}
	return fields.Stringify(out)
}

func (f *formatter) pipe(ctx context.Context, v fields.Value, p Pipe) fields.Value {
	if p.HasArg {
		switch p.Name {
		case "date":
			return fields.String(f.date(v, p.Arg))
		case "num":
			return fields.String(numberPipe(v, p.Arg))
		}
		return v
	}

	switch p.Name {
	case "url":
		if rec, ok := v.(fields.Record); ok && fields.Truthy(rec["url"]) {
			return fields.String(fields.Stringify(rec["url"]))
		}
		if n, ok := fields.ToFloat(v); ok {
			if att, ok := f.src.Attachment(ctx, int64(n)); ok {
				return fields.String(att.URL)
			}
			return fields.String("")
		}
		return v
	case "id":
		switch t := v.(type) {
		case fields.Record:
			for _, key := range []string{"ID", "id"} {
				if id, ok := t[key]; ok && !fields.IsNull(id) {
					return id
				}
			}
			return fields.String("")
		case fields.List:
			return fields.String("")
		case *fields.Entity:
			if t != nil {
				return fields.Number(t.Ref.ID)
			}
		}
		return v
	case "img":
		img, ok := f.normalizeImage(ctx, v)
		if !ok {
			return fields.String("")
		}
		return fields.String(`<img src="` + escURL(img.URL) + `" alt="` + escapeHTML(img.Alt) + `" />`)
	case "a", "link":
		file, ok := f.normalizeFile(ctx, v)
		if !ok {
			return fields.String("")
		}
		return fields.String(`<a href="` + escURL(file.URL) + `">` + escapeHTML(file.label()) + `</a>`)
	case "raw":
		return fields.String(fields.Stringify(v))
	case "esc":
		return fields.String(escapeHTML(fields.Stringify(v)))
	case "upper":
		return fields.String(f.upper.String(fields.Stringify(v)))
	case "lower":
		return fields.String(f.lower.String(fields.Stringify(v)))
	case "nl2br":
		return fields.String(nl2br(fields.Stringify(v)))
	}
	return v
}

// date formats a Unix timestamp or a parseable date string with a PHP date()
// layout. Zero, empty and unparseable input produce the empty string.
func (f *formatter) date(v fields.Value, layout string) string {
	var t time.Time
	if n, ok := fields.ToFloat(v); ok {
		if int64(n) == 0 {
			return ""
		}
		t = time.Unix(int64(n), 0).In(f.loc)
	} else {
		s := strings.TrimSpace(fields.Stringify(v))
		if s == "" {
			return ""
		}
		parsed, err := dateparse.ParseIn(s, f.loc)
		if err != nil || parsed.Unix() == 0 {
			return ""
		}
		t = parsed.In(f.loc)
	}
	return escapeHTML(formatPHPDate(t, layout, f.locale))
}

// numberPipe implements "num:decimals,point,thousands". Missing or empty
// separators default to "." and ","; non-numeric input renders empty.
func numberPipe(v fields.Value, args string) string {
	parts := strings.SplitN(args, ",", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	decimals := int(leadingFloat(parts[0]))
	point, sep := parts[1], parts[2]
	if point == "" {
		point = "."
	}
	if sep == "" {
		sep = ","
	}

	n, ok := fields.ToFloat(v)
	if !ok {
		return ""
	}
	return NumberFormat(n, decimals, point, sep)
}

// NumberFormat renders n rounded half away from zero to decimals places, with
// the integer part grouped in threes.
func NumberFormat(n float64, decimals int, point, sep string) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ""
	}
	if decimals < 0 {
		decimals = 0
	}
	if decimals > 15 {
		decimals = 15
	}

	pow := math.Pow(10, float64(decimals))
	// Pre-round to 15 significant digits so 1.005 rounds up to 1.01.
	scaled, _ := strconv.ParseFloat(strconv.FormatFloat(n*pow, 'g', 15, 64), 64)
	rounded := math.Round(scaled) / pow

	digits := strconv.FormatFloat(math.Abs(rounded), 'f', decimals, 64)
	intPart, fracPart, _ := strings.Cut(digits, ".")

	var sb strings.Builder
	if rounded < 0 {
		sb.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteString(sep)
		}
		sb.WriteRune(c)
	}
	if decimals > 0 {
		sb.WriteString(point)
		sb.WriteString(fracPart)
	}
	return sb.String()
}

// leadingFloat reads the numeric prefix of s, 0 when there is none.
func leadingFloat(s string) float64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := false
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits = true
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits = true
		}
	}
	if !digits {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func nl2br(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\n' && c != '\r' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteString("<br />")
		sb.WriteByte(c)
		if i+1 < len(s) && (s[i+1] == '\n' || s[i+1] == '\r') && s[i+1] != c {
			i++
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

var allowedSchemes = map[string]bool{
	"http": true, "https": true, "ftp": true, "ftps": true, "mailto": true,
	"news": true, "irc": true, "irc6": true, "ircs": true, "gopher": true,
	"nntp": true, "feed": true, "telnet": true, "mms": true, "rtsp": true,
	"sms": true, "svn": true, "tel": true, "fax": true, "xmpp": true,
	"webcal": true, "urn": true,
}

// escURL prepares a URL for an HTML attribute. URLs with a scheme outside the
// allow-list, such as javascript:, become the empty string.
func escURL(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "%20")
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	if u.Scheme != "" && !allowedSchemes[strings.ToLower(u.Scheme)] {
		return ""
	}
	return html.EscapeString(s)
}

// isURL reports whether s is an absolute URL with a scheme, and a host for
// the schemes that require one.
func isURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp", "ftps":
		return u.Host != ""
	}
	return u.Opaque != "" || u.Host != "" || u.Path != ""
}

func languageTag(locale string) language.Tag {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return language.Und
	}
	return tag
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"de_de": monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_fr": monday.LocaleFrFR,
	"es":    monday.LocaleEsES,
	"es_es": monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"it_it": monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_pt": monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"nl_nl": monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"ru_ru": monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"pl_pl": monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"sv_se": monday.LocaleSvSE,
	"ja":    monday.LocaleJaJP,
	"ja_jp": monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_cn": monday.LocaleZhCN,
	"tr":    monday.LocaleTrTR,
	"tr_tr": monday.LocaleTrTR,
	"ko":    monday.LocaleKoKR,
	"ko_kr": monday.LocaleKoKR,
	"zh_tw": monday.LocaleZhTW,
	"fr_ca": monday.LocaleFrCA,
	"da":    monday.LocaleDaDK,
	"da_dk": monday.LocaleDaDK,
	"fi":    monday.LocaleFiFI,
	"fi_fi": monday.LocaleFiFI,
	"cs":    monday.LocaleCsCZ,
	"cs_cz": monday.LocaleCsCZ,
	"uk":    monday.LocaleUkUA,
	"uk_ua": monday.LocaleUkUA,
}

// mondayLocale maps a locale name to the one used for month and day names,
// defaulting to US English.
func mondayLocale(locale string) monday.Locale {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "-", "_"))
	if l, ok := mondayLocales[key]; ok {
		return l
	}
	return monday.LocaleEnUS
}
