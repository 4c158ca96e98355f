package shopify

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/metasweep/errs"
	"github.com/coachpo/metasweep/internal/domain/catalog"
)

func TestSetMetafieldSendsInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		assert.Contains(t, req.Query, "metafieldsSet(metafields: $metafields)")
		list, ok := req.Variables["metafields"].([]any)
		if assert.True(t, ok) && assert.Len(t, list, 1) {
			assert.Equal(t, map[string]any{
				"ownerId":   "gid://shopify/Product/11",
				"namespace": "custom",
				"key":       "badges",
				"type":      "list.single_line_text_field",
				"value":     `["Sale"]`,
			}, list[0])
		}
		writeJSON(w, `{"data":{"metafieldsSet":{"metafields":[{"id":"gid://shopify/Metafield/101","key":"badges"}],"userErrors":[]}}}`)
	})

	err := client.SetMetafield(context.Background(), catalog.MetafieldInput{
		OwnerID:   "gid://shopify/Product/11",
		Namespace: "custom",
		Key:       "badges",
		Type:      "list.single_line_text_field",
		Value:     `["Sale"]`,
	})
	require.NoError(t, err)
}

func TestSetMetafieldUserErrorsAreValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"data":{"metafieldsSet":{"metafields":[],"userErrors":[
			{"field":["metafields","0","value"],"message":"Value is invalid JSON","code":"INVALID_VALUE"}]}}}`)
	})

	err := client.SetMetafield(context.Background(), catalog.MetafieldInput{OwnerID: "gid://shopify/Product/11"})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeValidation))
	assert.False(t, errs.IsFatal(err))
	assert.Contains(t, err.Error(), "metafields.0.value: Value is invalid JSON")
	assert.Contains(t, err.Error(), `raw_code="INVALID_VALUE"`)
}

func TestDeleteMetafield(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQL(t, r)
		assert.Contains(t, req.Query, "metafieldDelete(input: { id: $id })")
		assert.Equal(t, "gid://shopify/Metafield/102", req.Variables["id"])
		writeJSON(w, `{"data":{"metafieldDelete":{"deletedId":"gid://shopify/Metafield/102","userErrors":[]}}}`)
	})
	require.NoError(t, client.DeleteMetafield(context.Background(), "gid://shopify/Metafield/102"))
}

func TestDeleteMetafieldMissingIsNotFound(t *testing.T) {
	for name, body := range map[string]string{
		"user error": `{"data":{"metafieldDelete":{"deletedId":null,"userErrors":[{"field":["id"],"message":"Metafield does not exist"}]}}}`,
		"no id":      `{"data":{"metafieldDelete":{"deletedId":null,"userErrors":[]}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, body)
			})
			err := client.DeleteMetafield(context.Background(), "gid://shopify/Metafield/102")
			assert.True(t, errs.IsCode(err, errs.CodeNotFound))
		})
	}
}

func TestUserErrorClassification(t *testing.T) {
	assert.NoError(t, userErrorsToErr("op", nil))
	assert.True(t, errs.IsCode(userErrorsToErr("op", []userError{{Message: "Not Found"}}), errs.CodeNotFound))
	assert.True(t, errs.IsCode(userErrorsToErr("op", []userError{{Code: "NOT_FOUND", Message: "gone"}}), errs.CodeNotFound))
	mixed := []userError{{Message: "Metafield does not exist"}, {Message: "Value too long"}}
	assert.True(t, errs.IsCode(userErrorsToErr("op", mixed), errs.CodeValidation))
}
