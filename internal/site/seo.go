package site

import "strings"

// Meta holds the document metadata rendered as description, OpenGraph and Twitter card tags.
type Meta struct {
	Title         string
	Description   string
	Author        string
	TwitterAuthor string
	TwitterSite   string
	URL           string
	ImageURL      string
}

const defaultDescription = "An example implementation of using Purchasing Power Parity to adjust the price of a product based on the user’s location"

func (m Meta) withDefaults() Meta {
	if m.Title == "" {
		m.Title = "Parity Coffee"
	}
	if m.Description == "" {
		m.Description = defaultDescription
	}
	if m.ImageURL == "" && m.URL != "" {
		m.ImageURL = strings.TrimRight(m.URL, "/") + "/banner.jpg"
	}
	return m
}
