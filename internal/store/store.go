package store

import (
	"context"
	"errors"

	"retailtrack/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicateCode     = errors.New("duplicate item code")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrDuplicateUser     = errors.New("duplicate username")
)

type Repository interface {
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	GetItemByCode(ctx context.Context, code string) (*domain.Item, error)
	ListItems(ctx context.Context, search string) ([]domain.Item, error)
	UpdateItem(ctx context.Context, code string, update domain.ItemUpdateRequest) (*domain.Item, error)
	DeleteItem(ctx context.Context, code string) error
	// AdjustStock changes currentStock by delta and fails with
	// ErrInsufficientStock when the result would be negative. A non-nil
	// purchasePrice is applied in the same statement, so restocks cannot
	// leave the quantity updated with the price write lost.
	AdjustStock(ctx context.Context, code string, delta int, purchasePrice *float64) (*domain.Item, error)
	// NextItemCode atomically increments the item-code counter and
	// returns the new value.
	NextItemCode(ctx context.Context) (int64, error)
	ListLowStockItems(ctx context.Context) ([]domain.Item, error)

	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// CreateSale persists the sale and applies every line's stock
	// decrement in one atomic unit.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, id string, update domain.UserUpdateRequest, passwordHash string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int, error)
}
