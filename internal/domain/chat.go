package domain

// ChatRequest is the request to send a chat message
type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message" binding:"required"`
}

// RelevanceCheck tells the caller whether the message concerned the store
type RelevanceCheck struct {
	IsRelevant bool   `json:"isRelevant"`
	Reason     string `json:"reason"`
}

// ProductCard is one structured product in a chat response
type ProductCard struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Brand   string `json:"brand,omitempty"`
	Price   string `json:"price,omitempty"`
	Article string `json:"article,omitempty"`
	Image   string `json:"image,omitempty"`
	Link    string `json:"link,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// MaxProductCards caps the structured product list of a response
const MaxProductCards = 3

// ChatResponse is the response envelope of one turn
type ChatResponse struct {
	Response       string         `json:"response"`
	SessionID      string         `json:"sessionId"`
	ProductsFound  int            `json:"productsFound"`
	RelevanceCheck RelevanceCheck `json:"relevanceCheck"`
	Products       []ProductCard  `json:"products,omitempty"`
}
