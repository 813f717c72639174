package library

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

var extensionCategories = map[metadata.Category][]string{
	metadata.CategoryAudio: {"mp3", "wav", "flac", "ogg"},
	metadata.CategoryVideo: {"mp4", "m4v", "avi", "mov"},
	metadata.CategoryImage: {"jpg", "jpeg", "png", "tiff", "webp", "bmp", "gif"},
}

// Categorize derives the category of an upload from its MIME type, falling
// back to the file name suffix. Audio wins over video, video over image,
// image over pdf.
func Categorize(name, mimeType string) metadata.Category {
	lower := strings.ToLower(name)
	for _, cat := range []metadata.Category{metadata.CategoryAudio, metadata.CategoryVideo, metadata.CategoryImage} {
		if strings.HasPrefix(mimeType, string(cat)) {
			return cat
		}
		for _, ext := range extensionCategories[cat] {
			if strings.HasSuffix(lower, ext) {
				return cat
			}
		}
	}
	if mimeType == "application/pdf" || filepath.Ext(lower) == ".pdf" {
		return metadata.CategoryPDF
	}
	return metadata.CategoryOther
}
