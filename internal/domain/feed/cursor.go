package feed

import "github.com/okian/feedmill/internal/domain/model"

// Page applies opaque-id cursor pagination over a fully materialized
// sequence. after is the id of the last item the caller saw; the page
// starts right behind it. An unknown or empty cursor starts from the
// beginning, it is never an error. next is empty when no items remain
// past the returned page.
func Page(items []model.FeedItem, limit int, after string) (page []model.FeedItem, next string) {
	if limit <= 0 {
		return nil, ""
	}

	start := 0
	if after != "" {
		if idx := indexOf(items, after); idx >= 0 {
			start = idx + 1
		}
	}

	if start >= len(items) {
		return []model.FeedItem{}, ""
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}

	page = items[start:end]
	if end < len(items) {
		next = page[len(page)-1].ID
	}
	return page, next
}

func indexOf(items []model.FeedItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
