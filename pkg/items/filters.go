package items

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// Filters parameterize the list query. Zero values are omitted from the
// request rather than sent empty.
type Filters struct {
	TableID     uuid.UUID
	Q           string
	Code        string
	MinQuantity *int
	MaxQuantity *int
	// PropertyKey restricts results to items having this property;
	// PropertyValue additionally matches its string value.
	PropertyKey   string
	PropertyValue string
}

// Params encodes the non-empty filters as query parameters.
func (f Filters) Params() url.Values {
	params := url.Values{}
	if f.TableID != uuid.Nil {
		params.Set("table_id", f.TableID.String())
	}
	if f.Q != "" {
		params.Set("q", f.Q)
	}
	if f.Code != "" {
		params.Set("code", f.Code)
	}
	if f.MinQuantity != nil {
		params.Set("min_quantity", strconv.Itoa(*f.MinQuantity))
	}
	if f.MaxQuantity != nil {
		params.Set("max_quantity", strconv.Itoa(*f.MaxQuantity))
	}
	if f.PropertyKey != "" {
		params.Set("property_key", f.PropertyKey)
	}
	if f.PropertyValue != "" {
		params.Set("property_value", f.PropertyValue)
	}
	return params
}

func (f Filters) clone() Filters {
	if f.MinQuantity != nil {
		f.MinQuantity = Ptr(*f.MinQuantity)
	}
	if f.MaxQuantity != nil {
		f.MaxQuantity = Ptr(*f.MaxQuantity)
	}
	return f
}
