package models

type Product struct {
	Name        string `json:"name"`
	ProductCode string `json:"product_code"` // matched as a prefix of the identifier from byte 13
	PanelSize   int    `json:"panel_size"`   // boards on one panel
}

var UnknownProduct = Product{Name: "Unknown", PanelSize: 1}
