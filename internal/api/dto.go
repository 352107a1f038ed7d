package api

import "worldtrip/pkg/domain"

// Request bodies use camelCase keys; responses are the snake_case domain
// records.

type packageRequest struct {
	Name        string   `json:"name" validate:"required"`
	Destination string   `json:"destination" validate:"required"`
	Duration    string   `json:"duration" validate:"required"`
	Price       float64  `json:"price" validate:"required,gt=0"`
	Image       string   `json:"image"`
	Description string   `json:"description"`
	Included    []string `json:"included"`
}

func (r packageRequest) toDomain() domain.Package {
	return domain.Package{
		Name:        r.Name,
		Destination: r.Destination,
		Duration:    r.Duration,
		Price:       r.Price,
		Image:       r.Image,
		Description: r.Description,
		Included:    r.Included,
	}
}

type customerRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type orderRequest struct {
	PackageID         *int64  `json:"packageId"`
	PackageName       string  `json:"packageName" validate:"required"`
	Destination       string  `json:"destination" validate:"required"`
	Price             float64 `json:"price" validate:"required,gt=0"`
	CustomerName      string  `json:"customerName" validate:"required"`
	CustomerEmail     string  `json:"customerEmail" validate:"required"`
	CustomerPhone     string  `json:"customerPhone"`
	TravelDate        string  `json:"travelDate"`
	NumberOfTravelers int     `json:"numberOfTravelers" validate:"gte=0"`
	SpecialRequests   string  `json:"specialRequests"`
	Address           string  `json:"address"`
	City              string  `json:"city"`
	Country           string  `json:"country"`
	PassportNumber    string  `json:"passportNumber"`
	TotalAmount       float64 `json:"totalAmount" validate:"gte=0"`
}

func (r orderRequest) toDomain() domain.Order {
	return domain.Order{
		PackageID:         r.PackageID,
		PackageName:       r.PackageName,
		Destination:       r.Destination,
		Price:             r.Price,
		CustomerName:      r.CustomerName,
		CustomerEmail:     r.CustomerEmail,
		CustomerPhone:     r.CustomerPhone,
		TravelDate:        r.TravelDate,
		NumberOfTravelers: r.NumberOfTravelers,
		SpecialRequests:   r.SpecialRequests,
		Address:           r.Address,
		City:              r.City,
		Country:           r.Country,
		PassportNumber:    r.PassportNumber,
		TotalAmount:       r.TotalAmount,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}
