package tables

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Table groups items. Schema is a free-form description of the item
// properties the table expects.
type Table struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Schema    map[string]any `json:"schema"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Input is the payload of create and update requests. Nil fields are not sent.
type Input struct {
	Name   *string
	Schema map[string]any
}

// MarshalJSON omits unset fields.
func (in Input) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 2)
	if in.Name != nil {
		out["name"] = *in.Name
	}
	if in.Schema != nil {
		out["schema"] = in.Schema
	}
	return json.Marshal(out)
}

// Name is a shorthand for an Input that only sets the name.
func Name(name string) Input {
	return Input{Name: &name}
}

func (t Table) clone() Table {
	if t.Schema != nil {
		schema := make(map[string]any, len(t.Schema))
		for k, v := range t.Schema {
			schema[k] = v
		}
		t.Schema = schema
	}
	return t
}
