package domain

import "time"

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	PaymentTypeCash = "cash"
	PaymentTypeCard = "card"
)

type Item struct {
	ItemCode      string    `json:"itemCode"`
	ItemName      string    `json:"itemName"`
	ItemCompany   string    `json:"itemCompany,omitempty"`
	Category      string    `json:"category,omitempty"`
	Description   string    `json:"description,omitempty"`
	ItemLocation  string    `json:"itemLocation,omitempty"`
	Barcode       string    `json:"barcode,omitempty"`
	LowerLimit    int       `json:"lowerLimit"`
	CurrentStock  int       `json:"currentStock"`
	PurchasePrice float64   `json:"purchasePrice"`
	RetailPrice   float64   `json:"retailPrice"`
	ItemDiscount  float64   `json:"itemDiscount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ItemCreateRequest struct {
	ItemName      string  `json:"itemName" validate:"required,min=1,max=120"`
	ItemCompany   string  `json:"itemCompany" validate:"max=120"`
	Category      string  `json:"category" validate:"max=80"`
	Description   string  `json:"description" validate:"max=500"`
	ItemLocation  string  `json:"itemLocation" validate:"max=120"`
	Barcode       string  `json:"barcode" validate:"max=64"`
	LowerLimit    int     `json:"lowerLimit" validate:"gte=0"`
	CurrentStock  int     `json:"currentStock" validate:"gte=0"`
	PurchasePrice float64 `json:"purchasePrice" validate:"gte=0"`
	RetailPrice   float64 `json:"retailPrice" validate:"gte=0"`
	ItemDiscount  float64 `json:"itemDiscount" validate:"gte=0"`
}

type ItemUpdateRequest struct {
	ItemName      *string  `json:"itemName,omitempty" validate:"omitempty,min=1,max=120"`
	ItemCompany   *string  `json:"itemCompany,omitempty" validate:"omitempty,max=120"`
	Category      *string  `json:"category,omitempty" validate:"omitempty,max=80"`
	Description   *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	ItemLocation  *string  `json:"itemLocation,omitempty" validate:"omitempty,max=120"`
	Barcode       *string  `json:"barcode,omitempty" validate:"omitempty,max=64"`
	LowerLimit    *int     `json:"lowerLimit,omitempty" validate:"omitempty,gte=0"`
	PurchasePrice *float64 `json:"purchasePrice,omitempty" validate:"omitempty,gte=0"`
	RetailPrice   *float64 `json:"retailPrice,omitempty" validate:"omitempty,gte=0"`
	ItemDiscount  *float64 `json:"itemDiscount,omitempty" validate:"omitempty,gte=0"`
}

type StockAddRequest struct {
	Quantity      int      `json:"quantity" validate:"required,gt=0"`
	PurchasePrice *float64 `json:"purchasePrice,omitempty" validate:"omitempty,gte=0"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type CategoryCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=80"`
}

// SaleLine carries a snapshot of the item's name and price at sale time.
type SaleLine struct {
	ItemCode   string  `json:"itemCode"`
	ItemName   string  `json:"itemName"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Discount   float64 `json:"discount"`
	TotalPrice float64 `json:"totalPrice"`
}

type Sale struct {
	ID           string     `json:"id"`
	Items        []SaleLine `json:"items"`
	TotalAmount  float64    `json:"totalAmount"`
	Discount     float64    `json:"discount"`
	NetValue     float64    `json:"netValue"`
	CashPaid     float64    `json:"cashPaid"`
	Balance      float64    `json:"balance"`
	PaymentType  string     `json:"paymentType"`
	CustomerName string     `json:"customerName,omitempty"`
	SoldBy       string     `json:"soldBy,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SaleLineRequest accepts the denormalized fields POS clients send
// (itemName, price, totalPrice) but the server recomputes every amount
// from the stored item, so those fields are never trusted.
type SaleLineRequest struct {
	ItemCode   string  `json:"itemCode" validate:"required"`
	ItemName   string  `json:"itemName" validate:"omitempty"`
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	Price      float64 `json:"price" validate:"gte=0"`
	Discount   float64 `json:"discount" validate:"gte=0"`
	TotalPrice float64 `json:"totalPrice" validate:"gte=0"`
}

// SaleRequest takes payment as either cashPaid or its legacy alias
// paidAmount; totalAmount is accepted but the server-computed total wins.
type SaleRequest struct {
	Items        []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
	TotalAmount  float64           `json:"totalAmount" validate:"gte=0"`
	Discount     float64           `json:"discount" validate:"gte=0"`
	CashPaid     float64           `json:"cashPaid" validate:"gte=0"`
	PaidAmount   float64           `json:"paidAmount" validate:"gte=0"`
	PaymentType  string            `json:"paymentType" validate:"omitempty,oneof=cash card"`
	CustomerName string            `json:"customerName" validate:"omitempty,max=120"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UserCreateRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=40"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"displayName" validate:"max=120"`
	Role        string `json:"role" validate:"required,oneof=admin cashier"`
}

type UserUpdateRequest struct {
	DisplayName *string `json:"displayName,omitempty" validate:"omitempty,max=120"`
	Role        *string `json:"role,omitempty" validate:"omitempty,oneof=admin cashier"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expiresAt"`
}

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ID       string
	Username string
	Role     string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
