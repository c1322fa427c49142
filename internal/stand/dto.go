package stand

import (
	"github.com/baely/tab/internal/catalog"
	"github.com/baely/tab/internal/ledger"
)

// Amounts go over the wire as strings with two decimal places

type summaryResponse struct {
	Nick    string `json:"nick"`
	Balance string `json:"balance"`
}

type accountResponse struct {
	Nick    string   `json:"nick"`
	Balance string   `json:"balance"`
	History []string `json:"history"`
}

type beverageResponse struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

func toSummary(s ledger.Summary) summaryResponse {
	return summaryResponse{Nick: s.Nick, Balance: s.Balance.StringFixed(2)}
}

func toSummaries(in []ledger.Summary) []summaryResponse {
	out := make([]summaryResponse, 0, len(in))
	for _, s := range in {
		out = append(out, toSummary(s))
	}
	return out
}

func toAccount(v ledger.AccountView) accountResponse {
	history := v.History
	if history == nil {
		history = []string{}
	}
	return accountResponse{Nick: v.Nick, Balance: v.Balance.StringFixed(2), History: history}
}

func toBeverages(in []catalog.Beverage) []beverageResponse {
	out := make([]beverageResponse, 0, len(in))
	for _, b := range in {
		out = append(out, beverageResponse{Name: b.Name, Price: b.Price.StringFixed(2)})
	}
	return out
}
