package items

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/stocksync/pkg/gateway"
	"github.com/dmitrymomot/stocksync/pkg/logger"
)

// StockMovement is the payload of stock-in and stock-out requests. Items are
// addressed by table and code. Name, Notes and Properties are only honoured
// by stock-in, where they also seed an item created by the movement.
type StockMovement struct {
	TableID    uuid.UUID      `json:"table_id"`
	Code       string         `json:"code"`
	Quantity   int            `json:"quantity"`
	Name       string         `json:"name,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// StockIn adds mv.Quantity to the matching cached item before calling the
// remote endpoint. When no item matches, the optimistic step is skipped and
// the returned item (possibly newly created) is still merged.
func (c *Cache) StockIn(ctx context.Context, mv StockMovement) (Item, error) {
	return c.moveStock(ctx, "/stock/in", mv, func(current int) int {
		return current + mv.Quantity
	})
}

// StockOut subtracts mv.Quantity from the matching cached item, clamped at
// zero, before calling the remote endpoint.
func (c *Cache) StockOut(ctx context.Context, mv StockMovement) (Item, error) {
	return c.moveStock(ctx, "/stock/out", mv, func(current int) int {
		return max(0, current-mv.Quantity)
	})
}

func (c *Cache) moveStock(ctx context.Context, path string, mv StockMovement, adjust func(int) int) (Item, error) {
	code := strings.TrimSpace(mv.Code)

	c.mu.Lock()
	var snapshot *Item
	if i := c.indexByCodeLocked(mv.TableID, code); i >= 0 {
		s := c.items[i].Clone()
		snapshot = &s
		c.items[i].Quantity = adjust(c.items[i].Quantity)
	}
	c.mu.Unlock()

	var result Item
	if err := c.transport.Do(ctx, gateway.Request{Method: http.MethodPost, Path: path, Body: mv}, &result); err != nil {
		if snapshot != nil {
			c.replace(*snapshot)
			c.logger.WarnContext(ctx, "stock movement rolled back",
				logger.ItemID(snapshot.ID),
				logger.Error(err),
			)
		}
		return Item{}, err
	}

	c.Upsert(result)
	return result, nil
}

func (c *Cache) indexByCodeLocked(tableID uuid.UUID, code string) int {
	for i := range c.items {
		if c.items[i].TableID == tableID && c.items[i].Code == code {
			return i
		}
	}
	return -1
}
