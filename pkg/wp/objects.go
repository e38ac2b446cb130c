// Package wp holds the WordPress and ACF conventions shared by the field data
// sources: object rows, field definitions, value formatting by field type,
// native attribute fallbacks and permalink structure.
package wp

import "github.com/CTAG07/acfget/pkg/fields"

// Post is a row of the posts table.
type Post struct {
	ID           int64  `yaml:"id" json:"ID"`
	Author       int64  `yaml:"author" json:"post_author"`
	Date         string `yaml:"date" json:"post_date"`
	Content      string `yaml:"content" json:"post_content"`
	Title        string `yaml:"title" json:"post_title"`
	Excerpt      string `yaml:"excerpt" json:"post_excerpt"`
	Status       string `yaml:"status" json:"post_status"`
	Slug         string `yaml:"slug" json:"post_name"`
	Modified     string `yaml:"modified" json:"post_modified"`
	Parent       int64  `yaml:"parent" json:"post_parent"`
	GUID         string `yaml:"guid" json:"guid"`
	MenuOrder    int64  `yaml:"menu_order" json:"menu_order"`
	Type         string `yaml:"type" json:"post_type"`
	MimeType     string `yaml:"mime_type" json:"post_mime_type"`
	CommentCount int64  `yaml:"comment_count" json:"comment_count"`
}

// Entity converts the row into a post entity keyed by column name.
func (p Post) Entity() *fields.Entity {
	return &fields.Entity{
		Ref: fields.PostRef(p.ID),
		Attrs: fields.Record{
			"ID":             fields.Number(p.ID),
			"post_author":    fields.Number(p.Author),
			"post_date":      fields.String(p.Date),
			"post_content":   fields.String(p.Content),
			"post_title":     fields.String(p.Title),
			"post_excerpt":   fields.String(p.Excerpt),
			"post_status":    fields.String(p.Status),
			"post_name":      fields.String(p.Slug),
			"post_modified":  fields.String(p.Modified),
			"post_parent":    fields.Number(p.Parent),
			"guid":           fields.String(p.GUID),
			"menu_order":     fields.Number(p.MenuOrder),
			"post_type":      fields.String(p.Type),
			"post_mime_type": fields.String(p.MimeType),
			"comment_count":  fields.Number(p.CommentCount),
		},
	}
}

// Term is a term joined with its taxonomy row.
type Term struct {
	ID          int64  `yaml:"id" json:"term_id"`
	Name        string `yaml:"name" json:"name"`
	Slug        string `yaml:"slug" json:"slug"`
	TaxonomyID  int64  `yaml:"term_taxonomy_id" json:"term_taxonomy_id"`
	Taxonomy    string `yaml:"taxonomy" json:"taxonomy"`
	Description string `yaml:"description" json:"description"`
	Parent      int64  `yaml:"parent" json:"parent"`
	Count       int64  `yaml:"count" json:"count"`
}

func (t Term) Entity() *fields.Entity {
	return &fields.Entity{
		Ref: fields.TermRef(t.ID),
		Attrs: fields.Record{
			"term_id":          fields.Number(t.ID),
			"name":             fields.String(t.Name),
			"slug":             fields.String(t.Slug),
			"term_taxonomy_id": fields.Number(t.TaxonomyID),
			"taxonomy":         fields.String(t.Taxonomy),
			"description":      fields.String(t.Description),
			"parent":           fields.Number(t.Parent),
			"count":            fields.Number(t.Count),
		},
	}
}

// User is a row of the users table. The password hash is never loaded.
type User struct {
	ID          int64  `yaml:"id" json:"ID"`
	Login       string `yaml:"login" json:"user_login"`
	Nicename    string `yaml:"nicename" json:"user_nicename"`
	Email       string `yaml:"email" json:"user_email"`
	URL         string `yaml:"url" json:"user_url"`
	Registered  string `yaml:"registered" json:"user_registered"`
	DisplayName string `yaml:"display_name" json:"display_name"`
}

func (u User) Entity() *fields.Entity {
	return &fields.Entity{
		Ref: fields.UserRef(u.ID),
		Attrs: fields.Record{
			"ID":              fields.Number(u.ID),
			"user_login":      fields.String(u.Login),
			"user_nicename":   fields.String(u.Nicename),
			"user_email":      fields.String(u.Email),
			"user_url":        fields.String(u.URL),
			"user_registered": fields.String(u.Registered),
			"display_name":    fields.String(u.DisplayName),
		},
	}
}

// Comment is a row of the comments table.
type Comment struct {
	ID          int64  `yaml:"id" json:"comment_ID"`
	PostID      int64  `yaml:"post_id" json:"comment_post_ID"`
	Author      string `yaml:"author" json:"comment_author"`
	AuthorEmail string `yaml:"author_email" json:"comment_author_email"`
	AuthorURL   string `yaml:"author_url" json:"comment_author_url"`
	Date        string `yaml:"date" json:"comment_date"`
	Content     string `yaml:"content" json:"comment_content"`
	Approved    string `yaml:"approved" json:"comment_approved"`
	Parent      int64  `yaml:"parent" json:"comment_parent"`
	UserID      int64  `yaml:"user_id" json:"user_id"`
}

func (c Comment) Entity() *fields.Entity {
	return &fields.Entity{
		Ref: fields.CommentRef(c.ID),
		Attrs: fields.Record{
			"comment_ID":           fields.Number(c.ID),
			"comment_post_ID":      fields.Number(c.PostID),
			"comment_author":       fields.String(c.Author),
			"comment_author_email": fields.String(c.AuthorEmail),
			"comment_author_url":   fields.String(c.AuthorURL),
			"comment_date":         fields.String(c.Date),
			"comment_content":      fields.String(c.Content),
			"comment_approved":     fields.String(c.Approved),
			"comment_parent":       fields.Number(c.Parent),
			"user_id":              fields.Number(c.UserID),
		},
	}
}
