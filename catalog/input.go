package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryInput is the body of category create and replace requests.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=5,max=50"`
	Description string `json:"description" validate:"required,min=5,max=255"`
}

func (in CategoryInput) applyTo(c *Category) {
	c.Name = in.Name
	c.Description = in.Description
}

// ProductInput is the body of product create and replace requests.
type ProductInput struct {
	Name          string   `json:"name" validate:"required,min=5,max=50"`
	Description   string   `json:"description" validate:"required,min=5,max=255"`
	Price         *float64 `json:"price" validate:"required,gt=0,money"`
	Pictures      []string `json:"pictures" validate:"omitempty,dive,httpurl"`
	CategoryID    string   `json:"category_id" validate:"required,objectid"`
	StockQuantity *int     `json:"stock_quantity" validate:"required,min=0"`
}

func (in ProductInput) applyTo(p *Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = roundPrice(*in.Price)
	p.Pictures = append([]string{}, in.Pictures...)
	p.CategoryID = in.CategoryID
	p.StockQuantity = *in.StockQuantity
}

// UserInput is the body of user create, replace and registration requests.
type UserInput struct {
	Username string `json:"username" validate:"required,min=5,max=50"`
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=5,max=255"`
	IsAdmin  *bool  `json:"isAdmin"`
}

func (in UserInput) admin() bool {
	return in.IsAdmin != nil && *in.IsAdmin
}

// AuthInput is the body of login requests.
type AuthInput struct {
	Email    string `json:"email" validate:"required,min=5,max=255,email"`
	Password string `json:"password" validate:"required,min=5,max=255"`
}

// ReviewInput is the body of review create and replace requests.
type ReviewInput struct {
	ProductID  string     `json:"product_id" validate:"required,objectid"`
	UserID     string     `json:"user_id" validate:"required,objectid"`
	Rating     *int       `json:"rating" validate:"required,min=1,max=5"`
	Comment    string     `json:"comment" validate:"omitempty,max=1024"`
	ReviewDate *time.Time `json:"review_date"`
}

// applyTo copies the input onto r. The review date is kept unless the input sets one.
func (in ReviewInput) applyTo(r *Review, now time.Time) {
	r.ProductID = in.ProductID
	r.UserID = in.UserID
	r.Rating = *in.Rating
	r.Comment = in.Comment
	switch {
	case in.ReviewDate != nil:
		r.ReviewDate = in.ReviewDate.UTC().Truncate(time.Millisecond)
	case r.ReviewDate.IsZero():
		r.ReviewDate = now
	}
}

// OrderLineInput is one product entry of an OrderInput.
type OrderLineInput struct {
	ProductID string   `json:"product_id" validate:"required,objectid"`
	Quantity  *int     `json:"quantity" validate:"required,min=1"`
	Price     *float64 `json:"price" validate:"required,gt=0"`
}

// OrderInput is the body of order create and replace requests.
type OrderInput struct {
	UserID     string           `json:"user_id" validate:"required,objectid"`
	Products   []OrderLineInput `json:"products" validate:"required,dive"`
	TotalPrice *float64         `json:"total_price" validate:"required,gt=0"`
	OrderDate  *time.Time       `json:"order_date"`
	Status     OrderStatus      `json:"status" validate:"required,oneof=Pending Shipped Delivered Cancelled"`
}

// applyTo copies the input onto o. The order date is kept unless the input sets one.
func (in OrderInput) applyTo(o *Order, now time.Time) {
	o.UserID = in.UserID
	o.Products = make([]OrderLine, 0, len(in.Products))
	for _, line := range in.Products {
		o.Products = append(o.Products, OrderLine{
			ProductID: line.ProductID,
			Quantity:  *line.Quantity,
			Price:     *line.Price,
		})
	}
	o.TotalPrice = *in.TotalPrice
	o.Status = in.Status
	switch {
	case in.OrderDate != nil:
		o.OrderDate = in.OrderDate.UTC().Truncate(time.Millisecond)
	case o.OrderDate.IsZero():
		o.OrderDate = now
	}
}

// roundPrice rounds a price to cents.
func roundPrice(p float64) float64 {
	return decimal.NewFromFloat(p).Round(2).InexactFloat64()
}
