package types

import (
	"time"
)

type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeIndex  AssetType = "INDEX"
	AssetTypeEtf    AssetType = "ETF"
	AssetTypeFuture AssetType = "FUTURE"
)

// Asset is an optionable underlying.
type Asset struct {
	Id         int       `json:"id"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Type       AssetType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
