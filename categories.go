package finsync

import (
	"context"

	"github.com/unkn0wn-root/finsync/jsonapi"
)

// Categories is the typed facade over the categories class.
type Categories struct {
	*Loader
	*Resolver
	*Reconciler
}

// Cache returns the categories cache.
func (c *Categories) Cache() *Cache { return c.Resolver.Cache() }

// Create adds a category. An empty parentID creates a top-level category.
func (c *Categories) Create(ctx context.Context, title, parentID string) (jsonapi.Resource, error) {
	return c.Reconciler.Create(ctx, categoryAttrs(title), parentRel(parentID))
}

// Update renames or re-parents the category id.
func (c *Categories) Update(ctx context.Context, id, title, parentID string) (jsonapi.Resource, error) {
	return c.Reconciler.Update(ctx, id, categoryAttrs(title), parentRel(parentID))
}

// Parent resolves the parent of cat; ok is false for a top-level category.
func (c *Categories) Parent(ctx context.Context, cat jsonapi.Resource) (parent jsonapi.Resource, ok bool, err error) {
	return c.Follow(ctx, cat, "parent")
}

// Title returns the title attribute of a category.
func Title(r jsonapi.Resource) string {
	v, _ := r.Attr("title")
	s, _ := v.Str()
	return s
}

func categoryAttrs(title string) map[string]jsonapi.Value {
	return map[string]jsonapi.Value{"title": jsonapi.String(title)}
}

func parentRel(parentID string) map[string]jsonapi.Identifier {
	return map[string]jsonapi.Identifier{"parent": {Type: ClassCategories, ID: parentID}}
}
