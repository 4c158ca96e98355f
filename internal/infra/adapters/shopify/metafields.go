package shopify

import (
	"context"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

const (
	opMetafieldsSet   = "metafields_set"
	opMetafieldDelete = "metafield_delete"
)

const metafieldsSetMutation = `mutation SweepSetMetafields($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields {
      id
      key
    }
    userErrors {
      field
      message
      code
    }
  }
}`

const metafieldDeleteMutation = `mutation SweepDeleteMetafield($id: ID!) {
  metafieldDelete(input: { id: $id }) {
    deletedId
    userErrors {
      field
      message
    }
  }
}`

type metafieldsSetInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

type metafieldsSetData struct {
	MetafieldsSet *struct {
		UserErrors []userError `json:"userErrors"`
	} `json:"metafieldsSet"`
}

type metafieldDeleteData struct {
	MetafieldDelete *struct {
		DeletedID  *string     `json:"deletedId"`
		UserErrors []userError `json:"userErrors"`
	} `json:"metafieldDelete"`
}

// SetMetafield writes a single metafield. Field-level rejections are validation errors.
func (c *Client) SetMetafield(ctx context.Context, in catalog.MetafieldInput) error {
	vars := map[string]any{
		"metafields": []metafieldsSetInput{{
			OwnerID:   in.OwnerID,
			Namespace: in.Namespace,
			Key:       in.Key,
			Type:      in.Type,
			Value:     in.Value,
		}},
	}
	var data metafieldsSetData
	if err := c.graphql(ctx, opMetafieldsSet, metafieldsSetMutation, vars, &data); err != nil {
		return err
	}
	if data.MetafieldsSet == nil {
		return errs.New(Platform, errs.CodeProtocol, errs.WithOp(opMetafieldsSet), errs.WithMessage("metafieldsSet payload missing"))
	}
	return userErrorsToErr(opMetafieldsSet, data.MetafieldsSet.UserErrors)
}

// DeleteMetafield deletes a metafield by its global id. A missing metafield reports not found.
func (c *Client) DeleteMetafield(ctx context.Context, id string) error {
	var data metafieldDeleteData
	if err := c.graphql(ctx, opMetafieldDelete, metafieldDeleteMutation, map[string]any{"id": id}, &data); err != nil {
		return err
	}
	if data.MetafieldDelete == nil {
		return errs.New(Platform, errs.CodeProtocol, errs.WithOp(opMetafieldDelete), errs.WithMessage("metafieldDelete payload missing"))
	}
	if err := userErrorsToErr(opMetafieldDelete, data.MetafieldDelete.UserErrors); err != nil {
		return err
	}
	if data.MetafieldDelete.DeletedID == nil {
		return errs.New(Platform, errs.CodeNotFound, errs.WithOp(opMetafieldDelete), errs.WithField("id", id))
	}
	return nil
}
