// Package catalog defines the product and metafield shapes read from the remote store.
package catalog

import (
	"strconv"
	"strings"
)

// Metafield is a namespaced key/value entry attached to a product.
type Metafield struct {
	ID        string
	Namespace string
	Key       string
	Type      string
	Value     string
}

// Product is an immutable snapshot of a catalog record taken from one page fetch.
type Product struct {
	// ID is the primary opaque identifier (gid://shopify/Product/N).
	ID string
	// LegacyID is the numeric identifier accepted by the REST surface. Zero when unknown.
	LegacyID   int64
	Title      string
	Cursor     string
	Metafields []Metafield
}

// Metafield returns the last entry with the given key.
func (p Product) Metafield(key string) (Metafield, bool) {
	var (
		found Metafield
		ok    bool
	)
	for _, mf := range p.Metafields {
		if mf.Key == key {
			found = mf
			ok = true
		}
	}
	return found, ok
}

// Page is one batch of products in remote order.
type Page struct {
	Products []Product
	// Cursor marks the last product of the page and is only meaningful when HasNext is set.
	Cursor  string
	HasNext bool
}

// MetafieldInput describes a metafield write.
type MetafieldInput struct {
	OwnerID   string
	Namespace string
	Key       string
	Type      string
	Value     string
}

const (
	productGIDPrefix   = "gid://shopify/Product/"
	metafieldGIDPrefix = "gid://shopify/Metafield/"
)

// ProductGID formats a legacy numeric product id as a global id.
func ProductGID(legacyID int64) string {
	return productGIDPrefix + strconv.FormatInt(legacyID, 10)
}

// MetafieldGID formats a legacy numeric metafield id as a global id.
func MetafieldGID(legacyID int64) string {
	return metafieldGIDPrefix + strconv.FormatInt(legacyID, 10)
}

// LegacyIDFromGID extracts the trailing numeric component of a global id.
func LegacyIDFromGID(gid string) (int64, bool) {
	trimmed := strings.TrimSpace(gid)
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return 0, false
	}
	id, err := strconv.ParseInt(trimmed[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
