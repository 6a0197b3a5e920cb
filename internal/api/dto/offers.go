package dto

type OffersRequest struct {
	Postcode string   `json:"postcode"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Month    string   `json:"month"`
}

type OfferResponse struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	EngineerID string `json:"engineer_id"`
}

type OffersResponse struct {
	OK     bool            `json:"ok"`
	Reason string          `json:"reason,omitempty"`
	Offers []OfferResponse `json:"offers"`
}
