package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reply-orchestrator/internal/usecase"
)

func validatorCandidates() []usecase.CandidateContext {
	return []usecase.CandidateContext{
		{CatalogItemID: "item-1", URL: "https://shop.example/item-1", Title: "Item one"},
		{CatalogItemID: "item-2", URL: "https://shop.example/item-2", Title: "Item two"},
	}
}

func TestValidate_AcceptsGroundedDraft(t *testing.T) {
	v := usecase.NewOutputValidator(3)

	draft, err := v.Validate(`{
		"reply_text": "Try item one.",
		"products": [{"catalog_item_id":"item-1","url":"https://shop.example/item-1","confidence":0.8,"reason":"shown"}]
	}`, validatorCandidates())

	assert.NoError(t, err)
	assert.Equal(t, "Try item one.", draft.ReplyText)
	assert.Len(t, draft.Products, 1)
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	v := usecase.NewOutputValidator(3)

	_, err := v.Validate("here you go: item-1", validatorCandidates())
	assert.Error(t, err)

	_, err = v.Validate("", validatorCandidates())
	assert.Error(t, err)

	_, err = v.Validate(`{"reply_text":"  ","products":[]}`, validatorCandidates())
	assert.Error(t, err)
}

func TestValidate_DropsUnknownProducts(t *testing.T) {
	v := usecase.NewOutputValidator(3)

	draft, err := v.Validate(`{
		"reply_text": "Some picks.",
		"products": [
			{"catalog_item_id":"item-1","url":"https://shop.example/item-1","confidence":0.5,"reason":"ok"},
			{"catalog_item_id":"ghost","url":"https://nowhere.example","confidence":0.99,"reason":"fabricated"}
		]
	}`, validatorCandidates())

	assert.NoError(t, err)
	assert.Len(t, draft.Products, 1)
	assert.Equal(t, "item-1", draft.Products[0].CatalogItemID)
}

func TestValidate_RepairsFabricatedURL(t *testing.T) {
	v := usecase.NewOutputValidator(3)

	draft, err := v.Validate(`{
		"reply_text": "Pick.",
		"products": [{"catalog_item_id":"item-1","url":"https://evil.example/phish","confidence":0.7,"reason":"ok"}]
	}`, validatorCandidates())

	assert.NoError(t, err)
	assert.Equal(t, "https://shop.example/item-1", draft.Products[0].URL)
}

func TestValidate_TruncatesToHighestConfidence(t *testing.T) {
	v := usecase.NewOutputValidator(1)

	draft, err := v.Validate(`{
		"reply_text": "Both work.",
		"products": [
			{"catalog_item_id":"item-1","url":"https://shop.example/item-1","confidence":0.4,"reason":"a"},
			{"catalog_item_id":"item-2","url":"https://shop.example/item-2","confidence":0.9,"reason":"b"}
		]
	}`, validatorCandidates())

	assert.NoError(t, err)
	assert.Len(t, draft.Products, 1)
	assert.Equal(t, "item-2", draft.Products[0].CatalogItemID)
}

func TestValidate_ClampsConfidence(t *testing.T) {
	v := usecase.NewOutputValidator(3)

	draft, err := v.Validate(`{
		"reply_text": "Pick.",
		"products": [{"catalog_item_id":"item-1","url":"https://shop.example/item-1","confidence":1.7,"reason":"ok"}]
	}`, validatorCandidates())

	assert.NoError(t, err)
	assert.Equal(t, 1.0, draft.Products[0].Confidence)
}
