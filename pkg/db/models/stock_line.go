package models

// StockLine is one row of the view_inventory_stock projection.
type StockLine struct {
	Code        string `gorm:"column:code" json:"code"`
	Description string `gorm:"column:description" json:"description"`
	Unit        string `gorm:"column:unit" json:"unit"`
	Quantity    int    `gorm:"column:stock" json:"quantity"`
}

func (StockLine) TableName() string { return "view_inventory_stock" }
