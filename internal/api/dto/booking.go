package dto

type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type AddressRequest struct {
	Line     string   `json:"line"`
	Postcode string   `json:"postcode"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
}

type BookingRequest struct {
	Date     string          `json:"date"`
	Time     string          `json:"time"`
	Customer CustomerRequest `json:"customer"`
	Address  AddressRequest  `json:"address"`
}

type BookingResponse struct {
	OK            bool   `json:"ok"`
	AppointmentID string `json:"appointment_id,omitempty"`
	EngineerID    string `json:"engineer_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
