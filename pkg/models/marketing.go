package models

// MarketingCopy is generated server-side from a completed book.
type MarketingCopy struct {
	Tagline        string   `json:"tagline"`
	BackCoverBlurb string   `json:"back_cover_blurb"`
	Keywords       []string `json:"keywords"`
	SocialPosts    []string `json:"social_posts"`
}
