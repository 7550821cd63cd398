package ical

import (
	"regexp"
	"strings"
)

// ImageExtractor finds an image URL in free text. It is best effort: a
// miss is normal and the caller substitutes a default.
type ImageExtractor interface {
	Extract(text string) (string, bool)
}

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)\s]+)\)`)
	imgTagRe        = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
	driveFileRe     = regexp.MustCompile(`https?://drive\.google\.com/(?:file/d/|open\?id=|uc\?(?:[^\s"'<>]*&)?id=)([-\w]{10,})`)
	imgurRe         = regexp.MustCompile(`https?://(?:i\.)?imgur\.com/([A-Za-z0-9]{5,})(\.(?:jpe?g|png|gif|webp))?`)
	photosRe        = regexp.MustCompile(`https?://(?:photos\.app\.goo\.gl|photos\.google\.com|lh\d\.googleusercontent\.com)/[^\s"'<>)]+`)
	imageURLRe      = regexp.MustCompile(`(?i)https?://[^\s"'<>)]+\.(?:jpe?g|png|gif|webp|avif)(?:\?[^\s"'<>)]*)?`)
)

// DriveViewURL returns the direct-view URL for a Drive file id.
func DriveViewURL(id string) string {
	return "https://drive.google.com/uc?export=view&id=" + id
}

// TextImageExtractor scans text for markdown images, <img> tags, Drive
// links, Imgur links and bare image URLs, in that order.
type TextImageExtractor struct{}

// Extract implements ImageExtractor.
func (TextImageExtractor) Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	if m := markdownImageRe.FindStringSubmatch(text); m != nil {
		return normalizeImageURL(m[1]), true
	}
	if m := imgTagRe.FindStringSubmatch(text); m != nil {
		return normalizeImageURL(m[1]), true
	}
	if m := driveFileRe.FindStringSubmatch(text); m != nil {
		return DriveViewURL(m[1]), true
	}
	if m := imgurRe.FindStringSubmatch(text); m != nil {
		return imgurURL(m), true
	}
	if m := imageURLRe.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// attachmentImage checks one ATTACH value: an image file, a Drive file or
// a Google Photos link.
func attachmentImage(u string) (string, bool) {
	u = strings.TrimSpace(u)
	if u == "" {
		return "", false
	}
	if m := driveFileRe.FindStringSubmatch(u); m != nil {
		return DriveViewURL(m[1]), true
	}
	if imageURLRe.MatchString(u) {
		return u, true
	}
	if photosRe.MatchString(u) {
		return u, true
	}
	return "", false
}

func normalizeImageURL(u string) string {
	if m := driveFileRe.FindStringSubmatch(u); m != nil {
		return DriveViewURL(m[1])
	}
	return u
}

func imgurURL(m []string) string {
	if m[2] != "" {
		return "https://i.imgur.com/" + m[1] + m[2]
	}
	return "https://i.imgur.com/" + m[1] + ".jpg"
}
