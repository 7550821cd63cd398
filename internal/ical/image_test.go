package ical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextImageExtractor(t *testing.T) {
	x := TextImageExtractor{}
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"empty", "", "", false},
		{"no image", "Nos vemos en el parque", "", false},
		{"markdown", "Cartel: ![cartel](https://example.org/a.png) y más", "https://example.org/a.png", true},
		{"img tag", `<p><img alt="x" src='https://example.org/b.jpg'></p>`, "https://example.org/b.jpg", true},
		{"drive", "Foto https://drive.google.com/open?id=1ZyXwVuTsRqPoN", "https://drive.google.com/uc?export=view&id=1ZyXwVuTsRqPoN", true},
		{"imgur page", "https://imgur.com/AbC123x", "https://i.imgur.com/AbC123x.jpg", true},
		{"imgur direct", "https://i.imgur.com/AbC123x.png", "https://i.imgur.com/AbC123x.png", true},
		{"bare url", "Info: https://cdn.example.org/poster.WEBP?size=large fin", "https://cdn.example.org/poster.WEBP?size=large", true},
		{"markdown wins", "https://example.org/z.jpg ![m](https://example.org/m.jpg)", "https://example.org/m.jpg", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttachmentImage(t *testing.T) {
	got, ok := attachmentImage("https://drive.google.com/file/d/1AbCdEfGhIjKlMnOp/view")
	assert.True(t, ok)
	assert.Equal(t, DriveViewURL("1AbCdEfGhIjKlMnOp"), got)

	got, ok = attachmentImage("https://photos.app.goo.gl/xyz123")
	assert.True(t, ok)
	assert.Equal(t, "https://photos.app.goo.gl/xyz123", got)

	_, ok = attachmentImage("https://docs.google.com/document/d/abc/edit")
	assert.False(t, ok)
}
