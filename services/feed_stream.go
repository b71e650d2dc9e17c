package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamInterval is how often the feed stream polls for new posts.
var StreamInterval = 2 * time.Second

// StreamFeedSSE pushes newly created public posts to the client as
// server-sent "post" events.
func (s *FeedService) StreamFeedSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(StreamInterval)
		defer ticker.Stop()

		cursor := s.Now()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				next, err := s.writeNewPosts(context.Background(), w, cursor)
				if err != nil {
					log.Printf("[FEED_SSE] stream for %s ended: %v", userID, err)
					return
				}
				cursor = next
			case <-done:
				return
			}
		}
	})

	return nil
}

// writeNewPosts writes every public post created after since as an event and
// flushes. It returns the cursor for the next poll.
func (s *FeedService) writeNewPosts(ctx context.Context, w *bufio.Writer, since time.Time) (time.Time, error) {
	posts, err := s.PublicPostsSince(ctx, since, 50)
	if err != nil {
		log.Printf("[FEED_SSE] query error: %v", err)
		return since, nil
	}
	if len(posts) == 0 {
		return since, nil
	}

	for _, p := range posts {
		payload, err := json.Marshal(p)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: post\nid: %s\ndata: %s\n\n", p.ID, payload)
	}
	// Flush fails once the client has gone away.
	if err := w.Flush(); err != nil {
		return since, err
	}
	return posts[len(posts)-1].CreatedAt, nil
}
