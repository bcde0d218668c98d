package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariant_IsValid(t *testing.T) {
	assert.True(t, VariantItem.IsValid())
	assert.True(t, VariantFile.IsValid())
	assert.True(t, VariantFileCopy.IsValid())
	assert.False(t, Variant("folder").IsValid())
	assert.False(t, Variant("").IsValid())
}

func TestValidateAttributes(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		attrs   Attributes
		wantErr bool
	}{
		{"item complete", VariantItem, Attributes{"title": "x"}, false},
		{"item missing title", VariantItem, Attributes{"note": "x"}, true},
		{"file complete", VariantFile, Attributes{"filename": "a.txt", "mimetype": "text/plain"}, false},
		{"file missing mimetype", VariantFile, Attributes{"filename": "a.txt"}, true},
		{"copy complete", VariantFileCopy, Attributes{"storage_class": "posix", "uri": "file:///tmp/a"}, false},
		{"copy missing uri", VariantFileCopy, Attributes{"storage_class": "posix"}, true},
		{"unknown variant", Variant("folder"), Attributes{}, true},
		{"extra keys allowed", VariantItem, Attributes{"title": "x", "note": "y"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttributes(tt.variant, tt.attrs)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAttributes_Clone(t *testing.T) {
	orig := Attributes{"title": "x", "count": int64(3)}
	cp := orig.Clone()
	require.Equal(t, orig, cp)

	cp["title"] = "mutated"
	assert.Equal(t, "x", orig["title"])

	assert.Nil(t, Attributes(nil).Clone())
}
