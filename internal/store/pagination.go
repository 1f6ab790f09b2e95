package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/safar/storefront/internal/database"
)

type CursorPage struct {
	Items      interface{} `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

type OffsetPage struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// OrderCursor is the keyset position of the last order on a page. Orders are
// listed newest first, ties broken by id.
type OrderCursor struct {
	CreatedAt time.Time `json:"created_at"`
	ID        int64     `json:"id"`
}

func newOffsetPage(items interface{}, total int64, page, pageSize int) *OffsetPage {
	return &OffsetPage{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}
}

func offsetOf(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses a cursor from EncodeCursor. The empty cursor starts from
// the newest order.
func DecodeCursor(encoded string) (OrderCursor, error) {
	if encoded == "" {
		return OrderCursor{
			CreatedAt: time.Now().Add(time.Minute),
			ID:        math.MaxInt64,
		}, nil
	}

	var cursor OrderCursor
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return cursor, fmt.Errorf("%w: %v", database.ErrInvalidCursor, err)
	}
	if err := json.Unmarshal(data, &cursor); err != nil {
		return cursor, fmt.Errorf("%w: %v", database.ErrInvalidCursor, err)
	}
	if cursor.ID <= 0 || cursor.CreatedAt.IsZero() {
		return cursor, database.ErrInvalidCursor
	}

	return cursor, nil
}
