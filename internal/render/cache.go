package render

import (
	"html/template"
	"sync"
)

// Cache maps template names to compiled templates. It is an explicit object
// injected into the Renderer rather than package state, so tests and the
// administrative clear operation both have a handle on it.
//
// There is no per-key locking around compilation: templates are pure
// functions of their source, so if two renders race on a cold cache the
// second compilation simply overwrites the first. Wasted work, not a
// correctness issue.
type Cache struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewCache() *Cache {
	return &Cache{templates: make(map[string]*template.Template)}
}

func (c *Cache) Get(name string) (*template.Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tmpl, ok := c.templates[name]
	return tmpl, ok
}

func (c *Cache) Put(name string, tmpl *template.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[name] = tmpl
}

// Clear drops every compiled template. Whole-cache invalidation only; used
// administratively after a template asset changes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = make(map[string]*template.Template)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}
