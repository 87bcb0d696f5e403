package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	Id            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Content       string             `bson:"content" json:"content"`
	Author        string             `bson:"author" json:"author"`
	UserId        string             `bson:"userId" json:"userId"`
	Tags          []string           `bson:"tags" json:"tags"`
	ImageURL      string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	ImagePublicId string             `bson:"imagePublicId,omitempty" json:"imagePublicId,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func NewPost(title, content, author, userId string, tags []string) *Post {
	if tags == nil {
		tags = []string{}
	}
	return &Post{
		Title:   title,
		Content: content,
		Author:  author,
		UserId:  userId,
		Tags:    tags,
	}
}

// SetImage attaches an image. url and publicId always travel together.
func (p *Post) SetImage(url, publicId string) {
	if url == "" || publicId == "" {
		p.ClearImage()
		return
	}
	p.ImageURL = url
	p.ImagePublicId = publicId
}

func (p *Post) ClearImage() {
	p.ImageURL = ""
	p.ImagePublicId = ""
}

func (p *Post) HasImage() bool {
	return p.ImagePublicId != ""
}

// OwnedBy reports whether userId created the post.
func (p *Post) OwnedBy(userId string) bool {
	return userId != "" && p.UserId == userId
}

// ParseTags splits a comma separated tag list, trimming every token and
// dropping empty ones.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
