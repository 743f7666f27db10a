// Package repository holds the key namespace shared by all repositories.
// Every persisted key is scoped by prefix and tenant so several catalogs can
// share one database.
package repository

import "fmt"

// Keys builds the namespaced storage keys and index names for one tenant.
type Keys struct {
	Prefix string
	Tenant string
}

// Item returns the JSON document key for a catalog item.
func (k Keys) Item(id string) string {
	return fmt.Sprintf("%s%s:item:%s", k.Prefix, k.Tenant, id)
}

// ItemPrefix returns the key prefix shared by all catalog items.
func (k Keys) ItemPrefix() string {
	return fmt.Sprintf("%s%s:item:", k.Prefix, k.Tenant)
}

// CatalogIndex returns the FT index name over catalog items.
func (k Keys) CatalogIndex() string {
	return fmt.Sprintf("%s%s:catalog-idx", k.Prefix, k.Tenant)
}

// Metadata returns the key of the persisted metadata table.
func (k Keys) Metadata() string {
	return fmt.Sprintf("%s%s:meta", k.Prefix, k.Tenant)
}

// Embedding returns the hash key for one (field, item) vector record.
func (k Keys) Embedding(field, itemID string) string {
	return fmt.Sprintf("%s%s:emb:%s:%s", k.Prefix, k.Tenant, field, itemID)
}

// EmbeddingPrefix returns the key prefix shared by all embedding records.
func (k Keys) EmbeddingPrefix() string {
	return fmt.Sprintf("%s%s:emb:", k.Prefix, k.Tenant)
}

// EmbeddingIndex returns the FT index name over embedding records.
func (k Keys) EmbeddingIndex() string {
	return fmt.Sprintf("%s%s:emb-idx", k.Prefix, k.Tenant)
}
