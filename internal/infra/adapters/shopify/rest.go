package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const opListMetafields = "list_metafields"

type restMetafield struct {
	ID        int64  `json:"id"`
	GraphQLID string `json:"admin_graphql_api_id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
}

type restMetafieldsResponse struct {
	Metafields []restMetafield `json:"metafields"`
}

// ListMetafields resolves a product's metafields through the REST surface, addressed by the
// numeric product id. An unknown product reports not found.
func (c *Client) ListMetafields(ctx context.Context, legacyOwnerID int64, namespace, key string) ([]catalog.Metafield, error) {
	query := url.Values{}
	if namespace != "" {
		query.Set("namespace", namespace)
	}
	if key != "" {
		query.Set("key", key)
	}
	endpoint := c.opts.adminEndpoint(fmt.Sprintf("products/%d/metafields.json", legacyOwnerID))
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	raw, err := c.retry(ctx, opListMetafields, func() ([]byte, error) {
		return c.send(ctx, opListMetafields, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, err
	}
	var payload restMetafieldsResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.New(Platform, errs.CodeProtocol, errs.WithOp(opListMetafields), errs.WithMessage("decode metafields"), errs.WithCause(err))
	}

	out := make([]catalog.Metafield, 0, len(payload.Metafields))
	for _, mf := range payload.Metafields {
		if namespace != "" && mf.Namespace != namespace {
			continue
		}
		if key != "" && mf.Key != key {
			continue
		}
		id := strings.TrimSpace(mf.GraphQLID)
		if id == "" {
			id = catalog.MetafieldGID(mf.ID)
		}
		out = append(out, catalog.Metafield{
			ID:        id,
			Namespace: mf.Namespace,
			Key:       mf.Key,
			Type:      mf.Type,
			Value:     restValue(mf.Value),
		})
	}
	return out, nil
}

func restValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
