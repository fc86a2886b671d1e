package bot

import (
	"container/list"
	"strconv"
	"sync"
	"time"

	"github.com/minio/highwayhash"
)

// documentKey is a short stable key of a stored name that fits into callback
// data.
func documentKey(hashKey []byte, name string) string {
	return strconv.FormatUint(highwayhash.Sum64([]byte(name), hashKey), 36)
}

// pendingDocuments maps callback keys to stored document names. Least
// recently used entries are evicted first.
type pendingDocuments struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type pendingDocument struct {
	key       string
	name      string
	expiresAt time.Time
}

func newPendingDocuments(maxEntries int) *pendingDocuments {
	if maxEntries <= 0 {
		return nil
	}

	return &pendingDocuments{
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *pendingDocuments) get(key string, now time.Time) (string, bool) {
	if c == nil || key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry, ok := elem.Value.(*pendingDocument)
	if !ok {
		return "", false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return "", false
	}

	c.order.MoveToFront(elem)

	return entry.name, true
}

func (c *pendingDocuments) set(
	key string,
	name string,
	expiresAt time.Time,
	now time.Time,
) {
	if c == nil || key == "" || name == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*pendingDocument)
		if !castOk {
			return
		}

		entry.name = name
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&pendingDocument{
		key:       key,
		name:      name,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *pendingDocuments) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry, ok := elem.Value.(*pendingDocument); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}

		elem = prev
	}
}

func (c *pendingDocuments) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *pendingDocuments) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*pendingDocument)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
