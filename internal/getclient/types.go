package getclient

import "encoding/json"

// Transaction is one entry from the commerce transaction history.
type Transaction struct {
	TransactionID string   `json:"transactionId"`
	ActualDate    string   `json:"actualDate"`
	Amount        *float64 `json:"amount,omitempty"`
	LocationName  string   `json:"locationName,omitempty"`
	AccountName   string   `json:"accountName,omitempty"`
}

// Account is a stored-value account on the GET side.
type Account struct {
	ID                    string   `json:"id"`
	AccountDisplayName    string   `json:"accountDisplayName,omitempty"`
	IsActive              bool     `json:"isActive"`
	IsAccountTenderActive bool     `json:"isAccountTenderActive"`
	Balance               *float64 `json:"balance"`
}

type envelope struct {
	Response  json.RawMessage `json:"response"`
	Exception json.RawMessage `json:"exception"`
}

type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type systemCredentials struct {
	Password string `json:"password"`
	UserName string `json:"userName"`
	Domain   string `json:"domain"`
}

type queryCriteria struct {
	MaxReturnMostRecent int     `json:"maxReturnMostRecent"`
	NewestDate          *string `json:"newestDate"`
	OldestDate          string  `json:"oldestDate"`
	AccountID           *string `json:"accountId"`
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}
