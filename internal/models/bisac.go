package models

// BisacCode is a book-industry subject classification entry, served as
// static lookup data.
type BisacCode struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Category string `json:"category"`
}
