package rename

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

// EditableField names one of the metadata fields the rename engine lets a
// user edit in place (spec.md §4.4.5).
type EditableField string

const (
	FieldRotation    EditableField = "Rotation"
	FieldTitle       EditableField = "Title"
	FieldArtist      EditableField = "Artist"
	FieldCopyright   EditableField = "Copyright"
	FieldDescription EditableField = "Description"
	FieldKeywords    EditableField = "Keywords"
)

// validRotations are the only angles editable-field writes accept.
var validRotations = [4]int{0, 90, 180, 270}

// ValidateRotation normalizes value modulo 360 into [0, 360), then
// checks it against validRotations. An out-of-set value after modulo-360
// normalization is rejected with the nearest valid value named as a hint
// (spec.md §4.4.5).
func ValidateRotation(value int) (int, error) {
	normalized := ((value % 360) + 360) % 360
	for _, v := range validRotations {
		if normalized == v {
			return v, nil
		}
	}
	closest := nearestRotation(normalized)
	return 0, coreerr.Invalid(string(FieldRotation), fmt.Sprintf("closest valid value is %d", closest))
}

func nearestRotation(normalized int) int {
	best := validRotations[0]
	bestDist := rotationDistance(normalized, best)
	for _, v := range validRotations[1:] {
		if d := rotationDistance(normalized, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

func rotationDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ParseRotation parses a user-supplied rotation string (allowing a trailing
// degree sign) before validating it.
func ParseRotation(raw string) (int, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "°"))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, coreerr.Invalid(string(FieldRotation), "not an integer")
	}
	return ValidateRotation(n)
}

// tagPriority lists, for one editable text field and one inferred file
// type, the metadata payload keys to try in order (spec.md §4.4.5's
// "XMP over IPTC over EXIF" rule, file-type dependent).
var tagPriority = map[EditableField]map[string][]string{
	FieldTitle: {
		"image": {"XMP:Title", "IPTC:ObjectName", "EXIF:ImageDescription"},
		"video": {"XMP:Title", "QuickTime:DisplayName"},
		"audio": {"ID3:Title", "Vorbis:TITLE"},
		"":      {"XMP:Title", "IPTC:ObjectName", "EXIF:ImageDescription"},
	},
	FieldArtist: {
		"image": {"XMP:Creator", "IPTC:By-line", "EXIF:Artist"},
		"video": {"XMP:Creator", "QuickTime:Artist"},
		"audio": {"ID3:Artist", "Vorbis:ARTIST"},
		"":      {"XMP:Creator", "IPTC:By-line", "EXIF:Artist"},
	},
	FieldCopyright: {
		"image": {"XMP:Rights", "IPTC:CopyrightNotice", "EXIF:Copyright"},
		"video": {"XMP:Rights", "QuickTime:Copyright"},
		"audio": {"ID3:Copyright", "Vorbis:COPYRIGHT"},
		"":      {"XMP:Rights", "IPTC:CopyrightNotice", "EXIF:Copyright"},
	},
	FieldDescription: {
		"image": {"XMP:Description", "IPTC:Caption-Abstract", "EXIF:ImageDescription"},
		"video": {"XMP:Description", "QuickTime:Description"},
		"audio": {"ID3:Comment", "Vorbis:DESCRIPTION"},
		"":      {"XMP:Description", "IPTC:Caption-Abstract", "EXIF:ImageDescription"},
	},
	FieldKeywords: {
		"image": {"XMP:Subject", "IPTC:Keywords"},
		"video": {"XMP:Subject"},
		"audio": {"Vorbis:GENRE"},
		"":      {"XMP:Subject", "IPTC:Keywords"},
	},
}

// imageExts/videoExts/audioExts back inferFileType's extension fallback
// when the metadata payload carries no family-identifying prefix.
var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true, ".heic": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".m4v": true}
	audioExts = map[string]bool{".mp3": true, ".flac": true, ".ogg": true, ".wav": true, ".m4a": true}
)

// inferFileType classifies a file as "image", "video" or "audio" from its
// metadata payload's tag-family prefixes, falling back to the extension
// when the payload carries no recognizable prefix (spec.md §4.4.5).
func inferFileType(payload store.Payload, ext string) string {
	for key := range payload {
		switch {
		case strings.HasPrefix(key, "QuickTime:"):
			return "video"
		case strings.HasPrefix(key, "ID3:"), strings.HasPrefix(key, "Vorbis:"):
			return "audio"
		case strings.HasPrefix(key, "EXIF:"), strings.HasPrefix(key, "IPTC:"):
			return "image"
		}
	}
	ext = strings.ToLower(ext)
	switch {
	case imageExts[ext]:
		return "image"
	case videoExts[ext]:
		return "video"
	case audioExts[ext]:
		return "audio"
	}
	return ""
}

// ResolveTagValue picks the first populated tag for field out of the
// priority list for payload's inferred file type, returning ("", false) if
// none of the candidate keys are present.
func ResolveTagValue(field EditableField, payload store.Payload, ext string) (string, bool) {
	fileType := inferFileType(payload, ext)
	priorities, ok := tagPriority[field]
	if !ok {
		return "", false
	}
	keys, ok := priorities[fileType]
	if !ok {
		keys = priorities[""]
	}
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// ResolveTagKey picks the standard tag key an edit to field should land in:
// an already-present key from the priority list if payload has one,
// otherwise the highest-priority key the inferred file type supports
// (spec.md §4.4.5: "preferring an already-present tag and otherwise the
// highest-priority tag that the file type supports").
func ResolveTagKey(field EditableField, payload store.Payload, ext string) string {
	priorities, ok := tagPriority[field]
	if !ok {
		return string(field)
	}
	fileType := inferFileType(payload, ext)
	keys, ok := priorities[fileType]
	if !ok {
		keys = priorities[""]
	}
	for _, key := range keys {
		if _, present := payload[key]; present {
			return key
		}
	}
	if len(keys) > 0 {
		return keys[0]
	}
	return string(field)
}

// ValidateTagText rejects control characters and empty values for the
// free-text editable fields (Title, Artist, Copyright, Description,
// Keywords). Unlike Rotation there is no normalization step: the value is
// either acceptable as written or rejected.
func ValidateTagText(field EditableField, value string) error {
	if strings.TrimSpace(value) == "" {
		return coreerr.Invalid(string(field), "value is empty")
	}
	for _, r := range value {
		if r < 0x20 && r != '\t' {
			return coreerr.Invalid(string(field), "contains control characters")
		}
	}
	return nil
}
