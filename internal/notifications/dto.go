package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// NotificationDTO is the inbox message returned to sellers.
type NotificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewNotificationPage(page *pagination.Page[models.Notification]) pagination.Page[NotificationDTO] {
	if page == nil {
		return pagination.Page[NotificationDTO]{Items: []NotificationDTO{}}
	}
	items := make([]NotificationDTO, 0, len(page.Items))
	for _, n := range page.Items {
		items = append(items, NotificationDTO{
			ID:        n.ID,
			OrderID:   n.OrderID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Link:      n.Link,
			Read:      n.ReadAt != nil,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		})
	}
	return pagination.Page[NotificationDTO]{Items: items, NextCursor: page.NextCursor}
}
