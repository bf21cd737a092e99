package ledger

// Payer is a customer record as returned by the remote ledger. Everything
// but the identifier is optional on the wire.
type Payer struct {
	ID           string `json:"id"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

// Money is an amount in minor currency units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// LineItem is a single priced item within a transaction. Quantity is a
// string on the wire.
type LineItem struct {
	Name           string `json:"name"`
	Quantity       string `json:"quantity"`
	BasePriceMoney Money  `json:"base_price_money"`
}

// Transaction is a recorded payment event for a payer.
type Transaction struct {
	ID         string     `json:"id"`
	LocationID string     `json:"location_id,omitempty"`
	CustomerID string     `json:"customer_id,omitempty"`
	LineItems  []LineItem `json:"line_items,omitempty"`
	TotalMoney *Money     `json:"total_money,omitempty"`
	CreatedAt  string     `json:"created_at,omitempty"`
	UpdatedAt  string     `json:"updated_at,omitempty"`
	State      string     `json:"state,omitempty"`
}

// TextFilter is the ledger's structural filter wrapper: exactly one of
// Exact or Fuzzy is set.
type TextFilter struct {
	Exact string `json:"exact,omitempty"`
	Fuzzy string `json:"fuzzy,omitempty"`
}

// CustomerFilter narrows a payer search server-side. Absent fields are
// omitted from the request entirely, never sent as empty.
type CustomerFilter struct {
	EmailAddress *TextFilter `json:"email_address,omitempty"`
	PhoneNumber  *TextFilter `json:"phone_number,omitempty"`
}

// Empty reports whether the filter carries no server-side constraints.
func (f CustomerFilter) Empty() bool {
	return f.EmailAddress == nil && f.PhoneNumber == nil
}

type customerSearchQuery struct {
	Filter CustomerFilter `json:"filter"`
}

type customerSearchRequest struct {
	Cursor string               `json:"cursor,omitempty"`
	Query  *customerSearchQuery `json:"query,omitempty"`
}

type customerSearchResponse struct {
	Customers []Payer `json:"customers"`
	Cursor    string  `json:"cursor,omitempty"`
}

type customerIDFilter struct {
	CustomerIDs []string `json:"customer_ids"`
}

type orderSearchFilter struct {
	CustomerFilter customerIDFilter `json:"customer_filter"`
}

type orderSearchQuery struct {
	Filter orderSearchFilter `json:"filter"`
}

type orderSearchRequest struct {
	LocationIDs []string         `json:"location_ids"`
	Cursor      string           `json:"cursor,omitempty"`
	Query       orderSearchQuery `json:"query"`
}

type orderSearchResponse struct {
	Orders []Transaction `json:"orders"`
	Cursor string        `json:"cursor,omitempty"`
}

type errorResponse struct {
	Errors []struct {
		Category string `json:"category,omitempty"`
		Code     string `json:"code,omitempty"`
		Detail   string `json:"detail,omitempty"`
	} `json:"errors"`
}
