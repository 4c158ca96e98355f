package shopify

import (
	"context"
	"strconv"
	"strings"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const opProductsPage = "products_page"

const productsQuery = `query SweepProducts($first: Int!, $after: String, $namespace: String!, $metafields: Int!) {
  products(first: $first, after: $after) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      cursor
      node {
        id
        legacyResourceId
        title
        metafields(first: $metafields, namespace: $namespace) {
          nodes {
            id
            namespace
            key
            type
            value
          }
        }
      }
    }
  }
}`

type productsData struct {
	Products *struct {
		PageInfo struct {
			HasNextPage bool   `json:"hasNextPage"`
			EndCursor   string `json:"endCursor"`
		} `json:"pageInfo"`
		Edges []struct {
			Cursor string `json:"cursor"`
			Node   struct {
				ID               string `json:"id"`
				LegacyResourceID string `json:"legacyResourceId"`
				Title            string `json:"title"`
				Metafields       struct {
					Nodes []struct {
						ID        string `json:"id"`
						Namespace string `json:"namespace"`
						Key       string `json:"key"`
						Type      string `json:"type"`
						Value     string `json:"value"`
					} `json:"nodes"`
				} `json:"metafields"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"products"`
}

// FetchPage returns the page of products following cursor. An empty cursor starts at the beginning.
func (c *Client) FetchPage(ctx context.Context, cursor string) (catalog.Page, error) {
	vars := map[string]any{
		"first":      pageSize,
		"namespace":  c.opts.Config.Namespace,
		"metafields": metafieldsPerProduct,
	}
	if cursor != "" {
		vars["after"] = cursor
	}
	var data productsData
	if err := c.graphql(ctx, opProductsPage, productsQuery, vars, &data); err != nil {
		return catalog.Page{}, err
	}
	if data.Products == nil {
		return catalog.Page{}, errs.New(Platform, errs.CodeProtocol,
			errs.WithOp(opProductsPage),
			errs.WithMessage("products connection missing"),
			errs.WithField("cursor", cursor))
	}

	page := catalog.Page{
		Products: make([]catalog.Product, 0, len(data.Products.Edges)),
		Cursor:   data.Products.PageInfo.EndCursor,
		HasNext:  data.Products.PageInfo.HasNextPage,
	}
	for _, edge := range data.Products.Edges {
		node := edge.Node
		product := catalog.Product{
			ID:         node.ID,
			LegacyID:   legacyID(node.LegacyResourceID, node.ID),
			Title:      node.Title,
			Cursor:     edge.Cursor,
			Metafields: make([]catalog.Metafield, 0, len(node.Metafields.Nodes)),
		}
		for _, mf := range node.Metafields.Nodes {
			product.Metafields = append(product.Metafields, catalog.Metafield{
				ID:        mf.ID,
				Namespace: mf.Namespace,
				Key:       mf.Key,
				Type:      mf.Type,
				Value:     mf.Value,
			})
		}
		page.Products = append(page.Products, product)
	}
	return page, nil
}

func legacyID(raw, gid string) int64 {
	if id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil && id > 0 {
		return id
	}
	id, _ := catalog.LegacyIDFromGID(gid)
	return id
}
