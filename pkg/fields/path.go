package fields

import "strings"

// Mode is the retrieval hint carried by the first segment of a path.
type Mode uint8

const (
	ModeAuto Mode = iota
	ModeRepeater
	ModeRelation
)

// ParseMode maps the "type" attribute of a render request to a Mode.
// Unrecognized values mean auto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "repeater":
		return ModeRepeater
	case "relation", "relationship":
		return ModeRelation
	}
	return ModeAuto
}

func (m Mode) String() string {
	switch m {
	case ModeRepeater:
		return "repeater"
	case ModeRelation:
		return "relation"
	}
	return "auto"
}

// Path is a parsed dotted field path.
type Path struct {
	Segments []string
	Mode     Mode
}

// ParsePath splits a dotted path into segments, normalizing hyphens to
// underscores and discarding empty segments. The second result is false when
// no segment remains.
func ParsePath(s string, mode Mode) (Path, bool) {
	raw := strings.Split(s, ".")
	segs := make([]string, 0, len(raw))
	for _, seg := range raw {
		seg = NormalizeName(seg)
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) == 0 {
		return Path{}, false
	}
	return Path{Segments: segs, Mode: mode}, true
}

// NormalizeName trims a field name and maps hyphens to underscores.
func NormalizeName(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "_")
}

// Head is the root field name.
func (p Path) Head() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0]
}

// Tail is every segment after the root.
func (p Path) Tail() []string {
	if len(p.Segments) < 2 {
		return nil
	}
	return p.Segments[1:]
}

func (p Path) String() string {
	return strings.Join(p.Segments, ".")
}
