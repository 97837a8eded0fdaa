package items

import "encoding/json"

// Patch is a partial update. Nil scalar pointers leave the field untouched.
//
// Properties are patched in three steps, always in this order:
//  1. Properties, when non-nil, replaces the whole map (an empty map clears it);
//  2. PropertiesPatch is shallow-merged on top;
//  3. keys listed in PropertiesRemove are deleted.
type Patch struct {
	Name          *string
	Code          *string
	Quantity      *int
	ImageOriginal *string
	ImageThumb    *string
	Notes         *string

	Properties       map[string]any
	PropertiesPatch  map[string]any
	PropertiesRemove []string
}

// Apply mutates it according to the patch. The resulting Properties map is
// always a fresh map that shares no nested values with the patch.
func (p Patch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Code != nil {
		it.Code = *p.Code
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.ImageOriginal != nil {
		it.ImageOriginal = *p.ImageOriginal
	}
	if p.ImageThumb != nil {
		it.ImageThumb = *p.ImageThumb
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}

	next := make(map[string]any, len(it.Properties)+len(p.PropertiesPatch))
	source := it.Properties
	if p.Properties != nil {
		source = p.Properties
	}
	for k, v := range source {
		next[k] = cloneValue(v)
	}
	for k, v := range p.PropertiesPatch {
		next[k] = cloneValue(v)
	}
	for _, k := range p.PropertiesRemove {
		delete(next, k)
	}
	it.Properties = next
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Name == nil && p.Code == nil && p.Quantity == nil &&
		p.ImageOriginal == nil && p.ImageThumb == nil && p.Notes == nil &&
		p.Properties == nil && p.PropertiesPatch == nil && p.PropertiesRemove == nil
}

// MarshalJSON emits only the fields that are set, using the remote field names.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 9)
	if p.Name != nil {
		out["name"] = *p.Name
	}
	if p.Code != nil {
		out["code"] = *p.Code
	}
	if p.Quantity != nil {
		out["quantity"] = *p.Quantity
	}
	if p.ImageOriginal != nil {
		out["image_original"] = *p.ImageOriginal
	}
	if p.ImageThumb != nil {
		out["image_thumb"] = *p.ImageThumb
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	if p.Properties != nil {
		out["properties"] = p.Properties
	}
	if p.PropertiesPatch != nil {
		out["properties_patch"] = p.PropertiesPatch
	}
	if p.PropertiesRemove != nil {
		out["properties_remove"] = p.PropertiesRemove
	}
	return json.Marshal(out)
}
