package fields

import (
	"strconv"
	"strings"
)

// RefKind identifies which object graph a Ref points into.
type RefKind uint8

const (
	RefNone RefKind = iota
	RefPost
	RefTerm
	RefUser
	RefOption
	RefComment
)

var refKindNames = [...]string{
	RefNone:    "none",
	RefPost:    "post",
	RefTerm:    "term",
	RefUser:    "user",
	RefOption:  "option",
	RefComment: "comment",
}

func (k RefKind) String() string {
	if int(k) < len(refKindNames) {
		return refKindNames[k]
	}
	return "unknown"
}

// Ref is a canonical, typed context reference. It scopes every field lookup
// made during one render.
type Ref struct {
	Kind RefKind
	ID   int64
}

// Option is the singleton reference to site-wide option storage.
var Option = Ref{Kind: RefOption}

// PostRef refers to the post with the given id.
func PostRef(id int64) Ref { return Ref{Kind: RefPost, ID: id} }

// TermRef refers to the taxonomy term with the given id.
func TermRef(id int64) Ref { return Ref{Kind: RefTerm, ID: id} }

// UserRef refers to the user with the given id.
func UserRef(id int64) Ref { return Ref{Kind: RefUser, ID: id} }

// CommentRef refers to the comment with the given id.
func CommentRef(id int64) Ref { return Ref{Kind: RefComment, ID: id} }

// IsZero reports whether the reference points nowhere.
func (r Ref) IsZero() bool {
	return r.Kind == RefNone
}

// String renders the canonical id form: "12", "term_15", "user_2",
// "comment_9", "option", or "" for an absent reference.
func (r Ref) String() string {
	switch r.Kind {
	case RefPost:
		return strconv.FormatInt(r.ID, 10)
	case RefTerm, RefUser, RefComment:
		return r.Kind.String() + "_" + strconv.FormatInt(r.ID, 10)
	case RefOption:
		return "option"
	}
	return ""
}

// Ambient is the request state a render falls back to when no explicit id is
// given: the post being displayed, the queried archive term, the logged-in user.
type Ambient struct {
	CurrentPostID  int64 `json:"post_id" yaml:"post_id"`
	QueriedTermID  int64 `json:"term_id" yaml:"term_id"`
	LoggedInUserID int64 `json:"user_id" yaml:"user_id"`
}

var refPrefixes = []struct {
	prefix string
	kind   RefKind
}{
	{"term_", RefTerm},
	{"user_", RefUser},
	{"comment_", RefComment},
}

// ResolveContext turns a context kind (post, term, user, option, comment) and
// a raw id into a Ref. An empty id falls back to the ambient default for the
// kind; an id carrying a recognized prefix passes through unchanged whatever
// the kind; anything else is coerced to an integer. An id that coerces to
// zero or less points nowhere.
func ResolveContext(kind, rawID string, amb Ambient) Ref {
	kind = strings.ToLower(strings.TrimSpace(kind))
	rawID = strings.TrimSpace(rawID)

	if kind == "option" || kind == "options" {
		return Option
	}

	if rawID == "" {
		switch kind {
		case "term":
			return nonZero(RefTerm, amb.QueriedTermID)
		case "user":
			return nonZero(RefUser, amb.LoggedInUserID)
		case "comment":
			return Ref{}
		default:
			return nonZero(RefPost, amb.CurrentPostID)
		}
	}

	if ref, ok := parsePrefixed(rawID); ok {
		return ref
	}

	id := leadingInt(rawID)
	switch kind {
	case "term":
		return nonZero(RefTerm, id)
	case "user":
		return nonZero(RefUser, id)
	case "comment":
		return nonZero(RefComment, id)
	default:
		return nonZero(RefPost, id)
	}
}

// ParseRef parses a canonical id string as produced by Ref.String.
func ParseRef(s string) (Ref, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Ref{}, false
	case s == "option" || s == "options":
		return Option, true
	}
	if ref, ok := parsePrefixed(s); ok {
		return ref, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Ref{}, false
	}
	return PostRef(id), true
}

func parsePrefixed(s string) (Ref, bool) {
	for _, p := range refPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			id, err := strconv.ParseInt(s[len(p.prefix):], 10, 64)
			if err != nil || id <= 0 {
				return Ref{}, true
			}
			return Ref{Kind: p.kind, ID: id}, true
		}
	}
	return Ref{}, false
}

func nonZero(kind RefKind, id int64) Ref {
	if id <= 0 {
		return Ref{}
	}
	return Ref{Kind: kind, ID: id}
}

// leadingInt mirrors an integer cast of a string: optional sign followed by
// digits, anything after the digits ignored, 0 when there are none.
func leadingInt(s string) int64 {
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
