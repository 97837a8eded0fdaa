package cli

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dmitrymomot/stocksync/pkg/items"
)

// itemFilter keeps the items an expression accepts. A nil filter keeps all.
type itemFilter struct {
	program *vm.Program
}

// compileWhere compiles a boolean expression over item fields, for example
// `quantity < 5 && properties.material == "steel"`.
func compileWhere(where string) (*itemFilter, error) {
	if where == "" {
		return nil, nil
	}
	program, err := expr.Compile(where, expr.Env(itemEnv(items.Item{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid --where: %w", err)
	}
	return &itemFilter{program: program}, nil
}

// Apply returns the matching items. Items the expression fails on are dropped.
func (f *itemFilter) Apply(list []items.Item) []items.Item {
	if f == nil {
		return list
	}
	out := make([]items.Item, 0, len(list))
	for _, it := range list {
		res, err := expr.Run(f.program, itemEnv(it))
		if keep, _ := res.(bool); err == nil && keep {
			out = append(out, it)
		}
	}
	return out
}

func itemEnv(it items.Item) map[string]any {
	props := it.Properties
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"id":         it.ID.String(),
		"table_id":   it.TableID.String(),
		"code":       it.Code,
		"name":       it.Name,
		"quantity":   it.Quantity,
		"notes":      it.Notes,
		"has_image":  it.ImageOriginal != "",
		"properties": props,
		"updated_at": it.UpdatedAt,
		"age":        time.Since(it.UpdatedAt),
	}
}
