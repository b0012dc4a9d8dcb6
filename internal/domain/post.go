package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Platform is the social network a post is written for.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// ParsePlatform validates a platform name. An empty name selects LinkedIn.
func ParsePlatform(raw string) (Platform, error) {
	switch p := Platform(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PlatformLinkedIn, nil
	case PlatformLinkedIn, PlatformTwitter, PlatformFacebook, PlatformInstagram:
		return p, nil
	default:
		return "", fmt.Errorf("%w: platform %q", ErrInvalid, raw)
	}
}

// PostStatus is the publishing state of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPosted    PostStatus = "posted"
)

// Post is one generated content artifact.
type Post struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Platform     Platform   `json:"platform"`
	Hook         string     `json:"hook"`
	Body         string     `json:"body"`
	CallToAction string     `json:"callToAction"`
	Hashtags     []string   `json:"hashtags"`
	Content      string     `json:"content"`
	Status       PostStatus `json:"status"`
	RecordingID  *uuid.UUID `json:"recordingId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasStructuredFields reports whether any of hook, body, call-to-action or
// hashtags is set.
func (p *Post) HasStructuredFields() bool {
	return p.Hook != "" || p.Body != "" || p.CallToAction != "" || len(p.Hashtags) > 0
}

// Validate normalizes the hashtags in place and checks the post invariants.
func (p *Post) Validate() error {
	if p.OwnerID == "" {
		return fmt.Errorf("%w: post owner is required", ErrInvalid)
	}

	if _, err := ParsePlatform(string(p.Platform)); err != nil || p.Platform == "" {
		return fmt.Errorf("%w: post platform %q", ErrInvalid, p.Platform)
	}

	switch p.Status {
	case PostDraft, PostScheduled, PostPosted:
	default:
		return fmt.Errorf("%w: post status %q", ErrInvalid, p.Status)
	}

	p.Hashtags = NormalizeHashtags(p.Hashtags)

	if !p.HasStructuredFields() && strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("%w: post has neither structured fields nor content", ErrInvalid)
	}

	return nil
}

// Clone returns a deep copy of the post.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}

	cp := *p
	cp.Hashtags = append([]string(nil), p.Hashtags...)

	if p.RecordingID != nil {
		id := *p.RecordingID
		cp.RecordingID = &id
	}

	return &cp
}
