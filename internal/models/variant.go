package models

import "fmt"

// Variant classifies the kind of entity stored in the graph.
type Variant string

const (
	VariantItem     Variant = "item"
	VariantFile     Variant = "file"
	VariantFileCopy Variant = "file_copy"
)

// ValidVariants is the set of all recognized entity variants.
var ValidVariants = []Variant{
	VariantItem,
	VariantFile,
	VariantFileCopy,
}

// IsValid returns true if the variant is recognized.
func (v Variant) IsValid() bool {
	for i := range ValidVariants {
		if v == ValidVariants[i] {
			return true
		}
	}
	return false
}

// Relation labels shipped with the built-in variants. Labels are open-ended
// strings at the store level; the same label may connect different variant pairs.
const (
	RelationFiles  = "files"  // Item -> File
	RelationCopies = "copies" // File -> FileCopy
)

// Attributes is the eagerly-loaded scalar field set of an entity.
// Values are plain scalars (string, int64, float64, bool).
type Attributes map[string]any

// Clone returns a shallow copy. Attribute values are scalars, so a
// shallow copy is sufficient to decouple callers from cached state.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// requiredKeys lists the attribute keys every entity of a variant must carry.
var requiredKeys = map[Variant][]string{
	VariantItem:     {"title"},
	VariantFile:     {"filename", "mimetype"},
	VariantFileCopy: {"storage_class", "uri"},
}

// ValidateAttributes checks that attrs carries every required key for the
// variant. Entities are never handed to clients with absent attributes, so
// this runs both at creation and at hydration.
func ValidateAttributes(v Variant, attrs Attributes) error {
	if !v.IsValid() {
		return fmt.Errorf("unknown variant %q", v)
	}
	for _, key := range requiredKeys[v] {
		if _, ok := attrs[key]; !ok {
			return fmt.Errorf("variant %q requires attribute %q", v, key)
		}
	}
	return nil
}
