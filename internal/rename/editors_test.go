package rename

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mecondev/oncutf-sub007/internal/coreerr"
	"github.com/mecondev/oncutf-sub007/internal/store"
)

func TestValidateRotationAcceptsCanonicalValues(t *testing.T) {
	for _, v := range []int{0, 90, 180, 270} {
		got, err := ValidateRotation(v)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestValidateRotationNormalizesModulo360(t *testing.T) {
	got, err := ValidateRotation(-90)
	require.NoError(t, err)
	require.Equal(t, 270, got)

	got, err = ValidateRotation(450)
	require.NoError(t, err)
	require.Equal(t, 90, got)
}

func TestValidateRotationRejectsOffAngleWithClosestHint(t *testing.T) {
	_, err := ValidateRotation(100)
	require.ErrorIs(t, err, coreerr.ErrInvalidValue)
	require.Contains(t, err.Error(), "closest valid value is 90")
}

func TestParseRotationTrimsDegreeSign(t *testing.T) {
	got, err := ParseRotation(" 180° ")
	require.NoError(t, err)
	require.Equal(t, 180, got)
}

func TestInferFileTypeFromPayloadPrefix(t *testing.T) {
	require.Equal(t, "image", inferFileType(store.Payload{"EXIF:Make": "Canon"}, ".dat"))
	require.Equal(t, "audio", inferFileType(store.Payload{"ID3:Title": "Song"}, ".dat"))
	require.Equal(t, "video", inferFileType(store.Payload{"QuickTime:DisplayName": "Clip"}, ".dat"))
}

func TestInferFileTypeFallsBackToExtension(t *testing.T) {
	require.Equal(t, "image", inferFileType(store.Payload{}, ".JPG"))
	require.Equal(t, "audio", inferFileType(store.Payload{}, ".mp3"))
	require.Equal(t, "", inferFileType(store.Payload{}, ".xyz"))
}

func TestResolveTagValuePrefersXMPOverIPTCOverEXIF(t *testing.T) {
	payload := store.Payload{
		"EXIF:ImageDescription": "exif title",
		"IPTC:ObjectName":       "iptc title",
		"XMP:Title":             "xmp title",
	}
	got, ok := ResolveTagValue(FieldTitle, payload, ".jpg")
	require.True(t, ok)
	require.Equal(t, "xmp title", got)
}

func TestResolveTagValueFallsThroughToLowerPriorityKey(t *testing.T) {
	payload := store.Payload{"EXIF:ImageDescription": "only exif"}
	got, ok := ResolveTagValue(FieldTitle, payload, ".jpg")
	require.True(t, ok)
	require.Equal(t, "only exif", got)
}

func TestResolveTagValueMissingReturnsFalse(t *testing.T) {
	_, ok := ResolveTagValue(FieldTitle, store.Payload{}, ".jpg")
	require.False(t, ok)
}

func TestValidateTagTextRejectsEmptyAndControlChars(t *testing.T) {
	require.Error(t, ValidateTagText(FieldTitle, "   "))
	require.Error(t, ValidateTagText(FieldTitle, "bad\x01name"))
	require.NoError(t, ValidateTagText(FieldTitle, "My Title"))
}
