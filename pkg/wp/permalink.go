package wp

import (
	"net/url"
	"strconv"
	"strings"
)

// Links builds public URLs with a "/%postname%/" permalink structure.
type Links struct {
	SiteURL string
}

func (l Links) base() string {
	return strings.TrimRight(l.SiteURL, "/")
}

// Home is the front page URL.
func (l Links) Home() string {
	return l.base() + "/"
}

// Post returns the URL of a post. Unpublished posts and posts without a slug
// use the query form.
func (l Links) Post(p Post) string {
	id := strconv.FormatInt(p.ID, 10)
	published := p.Status == "" || p.Status == "publish" || p.Status == "inherit"

	switch {
	case p.Type == "attachment":
		if p.GUID != "" {
			return p.GUID
		}
		return l.base() + "/?attachment_id=" + id
	case p.Slug == "" || !published:
		if p.Type == "page" {
			return l.base() + "/?page_id=" + id
		}
		return l.base() + "/?p=" + id
	case p.Type == "" || p.Type == "post" || p.Type == "page":
		return l.base() + "/" + url.PathEscape(p.Slug) + "/"
	}
	return l.base() + "/" + url.PathEscape(p.Type) + "/" + url.PathEscape(p.Slug) + "/"
}

// Term returns the archive URL of a term.
func (l Links) Term(t Term) string {
	var prefix string
	switch t.Taxonomy {
	case "category":
		prefix = "category"
	case "post_tag":
		prefix = "tag"
	case "":
		return l.base() + "/?term_id=" + strconv.FormatInt(t.ID, 10)
	default:
		prefix = t.Taxonomy
	}
	return l.base() + "/" + url.PathEscape(prefix) + "/" + url.PathEscape(t.Slug) + "/"
}

// Author returns the author archive URL of a user.
func (l Links) Author(u User) string {
	if u.Nicename == "" {
		return l.base() + "/?author=" + strconv.FormatInt(u.ID, 10)
	}
	return l.base() + "/author/" + url.PathEscape(u.Nicename) + "/"
}
