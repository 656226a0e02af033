package dto

// ListTillsRequest represents the request to derive the till list
type ListTillsRequest struct {
	MaxScan *int `json:"-" query:"max_scan" validate:"omitempty,min=1"`
}

// ListTillsResponse represents the derived till list
type ListTillsResponse struct {
	Tills       []TillDTO `json:"tills"`
	TillColumn  string    `json:"till_column"`
	ScannedRows int64     `json:"scanned_rows"`
}

// TillDTO represents one till derived from the transactions table
type TillDTO struct {
	TillID  string `json:"till_id"`
	TxCount int64  `json:"tx_count"`
}

// ListTransactionsRequest represents the request to list transactions for a till
type ListTransactionsRequest struct {
	TillID    string   `json:"-" query:"till_id" validate:"required,max=100"`
	Status    *string  `json:"-" query:"status" validate:"omitempty,max=50"`
	Amount    *float64 `json:"-" query:"amount"`
	Search    *string  `json:"-" query:"search" validate:"omitempty,max=255"`
	StartDate *string  `json:"-" query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string  `json:"-" query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Page      int      `json:"-" query:"page" validate:"omitempty,min=1"`
	PageSize  int      `json:"-" query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListTransactionsResponse represents the paginated transaction listing
type ListTransactionsResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int64            `json:"total"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
}

// TransactionDTO represents one transaction row in responses
type TransactionDTO struct {
	ID          int64   `json:"id"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	Reference   *string `json:"reference,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// GetTransactionResponse represents a single transaction lookup by primary key
type GetTransactionResponse struct {
	Transaction TransactionDTO `json:"transaction"`
}

// AmountCategoriesRequest represents the request for per-amount coverage buckets
type AmountCategoriesRequest struct {
	TillID    string  `json:"-" query:"till_id" validate:"required,max=100"`
	Status    *string `json:"-" query:"status" validate:"omitempty,max=50"`
	StartDate *string `json:"-" query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"-" query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	MaxScan   *int    `json:"-" query:"max_scan" validate:"omitempty,min=1"`
}

// AmountCategoriesResponse represents per-amount recipient coverage
type AmountCategoriesResponse struct {
	Categories        []AmountCategoryDTO `json:"categories"`
	TotalTransactions int64               `json:"total_transactions"`
}

// AmountCategoryDTO represents coverage statistics for one unique amount
type AmountCategoryDTO struct {
	Amount             float64 `json:"amount"`
	TxCount            int64   `json:"tx_count"`
	RecipientsTotal    int64   `json:"recipients_total"`
	RecipientsNew      int64   `json:"recipients_new"`
	RecipientsMessaged int64   `json:"recipients_messaged"`
}
