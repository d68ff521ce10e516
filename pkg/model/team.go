package model

import "github.com/shopspring/decimal"

type Team struct {
	ID     int             `json:"id"`
	Name   string          `json:"name"`
	Budget decimal.Decimal `json:"budget"`
}
