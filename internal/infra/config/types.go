package config

import "strings"

// Environment identifies where a sweep runs.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// DeleteStrategy selects how expiration entries are removed.
type DeleteStrategy string

const (
	// DeleteDirect deletes the entry by the id returned with the product.
	DeleteDirect DeleteStrategy = "direct"
	// DeleteLookup re-resolves the entry through the legacy product id first.
	DeleteLookup DeleteStrategy = "lookup"
)

// Environment variables that override file settings.
const (
	EnvStoreURL    = "SHOPIFY_STORE_URL"
	EnvAccessToken = "SHOPIFY_ADMIN_API_ACCESS_TOKEN"
	EnvAPIVersion  = "SHOPIFY_API_VERSION"
	EnvEnvironment = "METASWEEP_ENV"
)

func normalizeEnvironment(raw string) Environment {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "development":
		return EnvDev
	case "production":
		return EnvProd
	default:
		return Environment(v)
	}
}
