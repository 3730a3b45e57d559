package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post is a piece of content addressed to a Target. The target fields are
// written once at creation; no update path may change them.
//
// Threading: a top-level post has no ParentPost and no ThreadRoot. A reply
// records its direct parent and the top-level ancestor of the chain, so
// every reply in a thread points at the same root regardless of depth.
type Post struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	AuthorID primitive.ObjectID `bson:"author_id" json:"author_id"`
	Target   `bson:",inline"`

	Title string   `bson:"title,omitempty" json:"title,omitempty"`
	Body  string   `bson:"body" json:"body"`
	Tags  []string `bson:"tags,omitempty" json:"tags,omitempty"`

	ParentPost *primitive.ObjectID `bson:"parent_post,omitempty" json:"parent_post,omitempty"`
	ThreadRoot *primitive.ObjectID `bson:"thread_root,omitempty" json:"thread_root,omitempty"`
	IsReply    bool                `bson:"is_reply" json:"is_reply"`
	ReplyCount int64               `bson:"reply_count" json:"reply_count"`

	EditHistory []PostEdit `bson:"edit_history,omitempty" json:"edit_history,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RootID returns the id of the post's thread root (itself when top-level).
func (p Post) RootID() primitive.ObjectID {
	if p.ThreadRoot != nil {
		return *p.ThreadRoot
	}
	return p.ID
}

// PostEdit keeps the body a post had before an edit.
type PostEdit struct {
	Body     string    `bson:"body" json:"body"`
	EditedAt time.Time `bson:"edited_at" json:"edited_at"`
}

// PostView is a post with its author denormalized for display.
type PostView struct {
	Post   `bson:",inline"`
	Author *UserRef `bson:"author,omitempty" json:"author,omitempty"`
}
