package domain

import "time"

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Slug      string    `json:"slug"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

// PublicPost is the projection served on the public blog listing.
type PublicPost struct {
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Slug      string    `json:"slug"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Tags      []string  `json:"tags"`
}

func (p Post) Public() PublicPost {
	return PublicPost{
		Title:     p.Title,
		Body:      p.Body,
		Slug:      p.Slug,
		Author:    p.Author,
		CreatedAt: p.CreatedAt,
		Tags:      p.Tags,
	}
}

type DirectoryEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Services  []string  `json:"services"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Website   string    `json:"website,omitempty"`
	Address   string    `json:"address,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

type DirectoryFilter struct {
	City    string
	Service string
}

// MaxContentListSize caps the public post and directory listings.
const MaxContentListSize = 100
