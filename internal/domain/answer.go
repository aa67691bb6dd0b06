package domain

// RecommendedProduct is one validated item reference in a drafted reply.
// Every field is copied from the catalog candidate the model selected.
type RecommendedProduct struct {
	CatalogItemID string
	Title         string
	URL           string
	Confidence    float64
	Reason        string
}

// Answer is a drafted, validated reply to one viewer comment.
type Answer struct {
	QueryID   string
	ReplyText string
	Products  []RecommendedProduct
	Usage     TokenUsage
}
