package models

import "time"

// Post is a single blog entry. ID and DatePosted are assigned once on creation.
type Post struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title         string    `gorm:"column:title;size:255;not null" json:"title"`
	Content       string    `gorm:"column:content;type:text;not null" json:"content"`
	FeaturedImage *string   `gorm:"column:featuredimage;size:512" json:"featured_image"`
	Author        string    `gorm:"column:author;size:128;not null" json:"author"`
	DatePosted    time.Time `gorm:"column:dateposted;not null" json:"date_posted"`
}

// TableName pins the table name used by the relational post store.
func (Post) TableName() string {
	return "posts"
}

// PostFields carries the mutable part of a post for updates.
type PostFields struct {
	Title         string
	Content       string
	FeaturedImage *string
}

// Apply overwrites the mutable fields of p.
func (f PostFields) Apply(p *Post) {
	p.Title = f.Title
	p.Content = f.Content
	p.FeaturedImage = f.FeaturedImage
}
