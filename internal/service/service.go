package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"retailtrack/internal/apperr"
	"retailtrack/internal/cache"
	"retailtrack/internal/domain"
	"retailtrack/internal/store"
)

const lowStockCacheKey = "report:low-stock"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	reports   cache.ReportCache
	logger    zerolog.Logger
	reportTTL time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, logger zerolog.Logger, reportTTL time.Duration) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL < time.Second {
		reportTTL = 30 * time.Second
	}

	return &Service{
		repo:      repo,
		reports:   reports,
		logger:    logger,
		reportTTL: reportTTL,
	}
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return apperr.New(apperr.CodeUnauthorized, "no authenticated actor")
	}
	if !actor.IsAdmin() {
		return apperr.Newf(apperr.CodeForbidden, "admin role required, %s is %s", actor.Username, actor.Role)
	}
	return nil
}

// translate maps store sentinels onto the closed error taxonomy. Anything
// unrecognized is treated as a persistence failure the caller may retry.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(err, apperr.CodeNotFound, op)
	case errors.Is(err, store.ErrInsufficientStock):
		return apperr.Wrap(err, apperr.CodeStock, op)
	case errors.Is(err, store.ErrDuplicateCode),
		errors.Is(err, store.ErrDuplicateName),
		errors.Is(err, store.ErrDuplicateUser):
		return apperr.Wrap(err, apperr.CodeConflict, op)
	default:
		return apperr.Wrap(err, apperr.CodePersistence, op)
	}
}

func (s *Service) ListItems(ctx context.Context, search string) ([]domain.Item, error) {
	items, err := s.repo.ListItems(ctx, search)
	return items, translate(err, "list items")
}

func (s *Service) GetItem(ctx context.Context, code string) (domain.Item, error) {
	item, err := s.repo.GetItemByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return domain.Item{}, translate(err, "get item")
	}
	return *item, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Item{}, err
	}

	req.ItemName = strings.TrimSpace(req.ItemName)
	if req.ItemName == "" {
		return domain.Item{}, apperr.New(apperr.CodeValidation, "item name is required")
	}

	seq, err := s.repo.NextItemCode(ctx)
	if err != nil {
		return domain.Item{}, translate(err, "mint item code")
	}

	now := time.Now().UTC()
	item := domain.Item{
		ItemCode:      fmt.Sprintf("rt%d", seq),
		ItemName:      req.ItemName,
		ItemCompany:   strings.TrimSpace(req.ItemCompany),
		Category:      strings.TrimSpace(req.Category),
		Description:   strings.TrimSpace(req.Description),
		ItemLocation:  strings.TrimSpace(req.ItemLocation),
		Barcode:       strings.TrimSpace(req.Barcode),
		LowerLimit:    req.LowerLimit,
		CurrentStock:  req.CurrentStock,
		PurchasePrice: req.PurchasePrice,
		RetailPrice:   req.RetailPrice,
		ItemDiscount:  req.ItemDiscount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, translate(err, "create item")
	}

	s.invalidateLowStock(ctx)
	s.logger.Info().Str("item_code", created.ItemCode).Str("item_name", created.ItemName).Msg("item created")
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, code string, req domain.ItemUpdateRequest) (domain.Item, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Item{}, err
	}
	if req.ItemName != nil && strings.TrimSpace(*req.ItemName) == "" {
		return domain.Item{}, apperr.New(apperr.CodeValidation, "item name cannot be empty")
	}

	updated, err := s.repo.UpdateItem(ctx, strings.TrimSpace(code), req)
	if err != nil {
		return domain.Item{}, translate(err, "update item")
	}

	s.invalidateLowStock(ctx)
	return *updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, code string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, strings.TrimSpace(code)); err != nil {
		return translate(err, "delete item")
	}
	s.invalidateLowStock(ctx)
	return nil
}

// AddStock restocks an item. The quantity rides the same conditional
// adjust operation sales use, just with a positive delta.
func (s *Service) AddStock(ctx context.Context, code string, req domain.StockAddRequest) (domain.Item, error) {
	if _, ok := ActorFromContext(ctx); !ok {
		return domain.Item{}, apperr.New(apperr.CodeUnauthorized, "no authenticated actor")
	}
	if req.Quantity < 1 {
		return domain.Item{}, apperr.New(apperr.CodeValidation, "quantity must be positive")
	}

	code = strings.TrimSpace(code)
	item, err := s.repo.AdjustStock(ctx, code, req.Quantity, req.PurchasePrice)
	if err != nil {
		return domain.Item{}, translate(err, "add stock")
	}

	s.invalidateLowStock(ctx)
	s.logger.Info().Str("item_code", code).Int("quantity", req.Quantity).Msg("stock added")
	return *item, nil
}

func (s *Service) LowStockReport(ctx context.Context) ([]domain.Item, error) {
	if cached, hit, err := s.reports.GetLowStock(ctx, lowStockCacheKey); err == nil && hit {
		return cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Msg("low-stock cache read failed")
	}

	items, err := s.repo.ListLowStockItems(ctx)
	if err != nil {
		return nil, translate(err, "low-stock report")
	}
	if err := s.reports.SetLowStock(ctx, lowStockCacheKey, items, s.reportTTL); err != nil {
		s.logger.Warn().Err(err).Msg("low-stock cache write failed")
	}
	return items, nil
}

func (s *Service) invalidateLowStock(ctx context.Context) {
	if err := s.reports.Invalidate(ctx, lowStockCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("low-stock cache invalidation failed")
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	return categories, translate(err, "list categories")
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.Category{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, apperr.New(apperr.CodeValidation, "category name is required")
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return domain.Category{}, translate(err, "create category")
	}
	return *created, nil
}

// RecordSale validates the request, resolves every line against the
// ledger, recomputes the money figures server-side and persists the sale
// and its stock decrements as one unit.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Sale{}, apperr.New(apperr.CodeUnauthorized, "no authenticated actor")
	}

	if len(req.Items) == 0 {
		return domain.Sale{}, apperr.New(apperr.CodeValidation, "a sale needs at least one line")
	}
	if req.Discount < 0 || req.CashPaid < 0 {
		return domain.Sale{}, apperr.New(apperr.CodeValidation, "discount and cash paid must be non-negative")
	}
	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = domain.PaymentTypeCash
	}
	if paymentType != domain.PaymentTypeCash && paymentType != domain.PaymentTypeCard {
		return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "unknown payment type %q", paymentType)
	}

	total := decimal.Zero
	lines := make([]domain.SaleLine, 0, len(req.Items))
	requested := make(map[string]int, len(req.Items))
	for _, lineReq := range req.Items {
		code := strings.TrimSpace(lineReq.ItemCode)
		if code == "" {
			return domain.Sale{}, apperr.New(apperr.CodeValidation, "line item code is required")
		}
		if lineReq.Quantity < 1 {
			return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "quantity for %s must be positive", code)
		}
		if lineReq.Discount < 0 {
			return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "discount for %s must be non-negative", code)
		}

		item, err := s.repo.GetItemByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "unknown item code %s", code).
				WithDetails(map[string]any{"itemCode": code})
		}
		if err != nil {
			return domain.Sale{}, translate(err, "resolve sale line")
		}
		// summed across lines, so repeated codes cannot sneak past the check
		requested[code] += lineReq.Quantity
		if item.CurrentStock < requested[code] {
			s.logger.Warn().Str("item_code", code).Int("stock", item.CurrentStock).Int("requested", requested[code]).Msg("sale rejected on stock")
			return domain.Sale{}, apperr.Newf(apperr.CodeStock, "insufficient stock for %s: have %d, requested %d",
				code, item.CurrentStock, requested[code]).
				WithDetails(map[string]any{"itemCode": code, "currentStock": item.CurrentStock, "requested": requested[code]})
		}

		price := decimal.NewFromFloat(item.RetailPrice)
		lineDiscount := decimal.NewFromFloat(lineReq.Discount)
		lineTotal := price.Mul(decimal.NewFromInt(int64(lineReq.Quantity))).Sub(lineDiscount)
		if lineTotal.IsNegative() {
			return domain.Sale{}, apperr.Newf(apperr.CodeValidation, "discount for %s exceeds the line amount", code)
		}

		lines = append(lines, domain.SaleLine{
			ItemCode:   item.ItemCode,
			ItemName:   item.ItemName,
			Quantity:   lineReq.Quantity,
			Price:      item.RetailPrice,
			Discount:   lineReq.Discount,
			TotalPrice: round2(lineTotal),
		})
		total = total.Add(lineTotal)
	}

	discount := decimal.NewFromFloat(req.Discount)
	if discount.GreaterThan(total) {
		return domain.Sale{}, apperr.New(apperr.CodeValidation, "discount exceeds the total amount")
	}
	netValue := total.Sub(discount)
	paid := req.CashPaid
	if paid == 0 {
		paid = req.PaidAmount
	}
	cashPaid := decimal.NewFromFloat(paid)
	if cashPaid.LessThan(netValue) {
		return domain.Sale{}, apperr.Newf(apperr.CodeInsufficientPayment, "cash paid %s is less than net value %s",
			cashPaid.StringFixed(2), netValue.StringFixed(2)).
			WithDetails(map[string]any{"netValue": round2(netValue), "cashPaid": round2(cashPaid)})
	}

	sale := domain.Sale{
		ID:           uuid.NewString(),
		Items:        lines,
		TotalAmount:  round2(total),
		Discount:     round2(discount),
		NetValue:     round2(netValue),
		CashPaid:     round2(cashPaid),
		Balance:      round2(cashPaid.Sub(netValue)),
		PaymentType:  paymentType,
		CustomerName: strings.TrimSpace(req.CustomerName),
		SoldBy:       actor.Username,
		CreatedAt:    time.Now().UTC(),
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// item vanished between resolve and commit
			return domain.Sale{}, apperr.Wrap(err, apperr.CodeValidation, "record sale")
		}
		return domain.Sale{}, translate(err, "record sale")
	}

	s.invalidateLowStock(ctx)
	s.logger.Info().
		Str("sale_id", created.ID).
		Str("sold_by", created.SoldBy).
		Int("lines", len(created.Items)).
		Float64("net_value", created.NetValue).
		Msg("sale recorded")
	return *created, nil
}

func (s *Service) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales, err := s.repo.ListSales(ctx)
	return sales, translate(err, "list sales")
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSaleByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Sale{}, translate(err, "get sale")
	}
	return *sale, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return domain.User{}, apperr.New(apperr.CodeValidation, "username is required")
	}
	if len(req.Password) < 8 {
		return domain.User{}, apperr.New(apperr.CodeValidation, "password must be at least 8 characters")
	}
	if req.Role != domain.RoleAdmin && req.Role != domain.RoleCashier {
		return domain.User{}, apperr.Newf(apperr.CodeValidation, "unknown role %q", req.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, apperr.Wrap(err, apperr.CodeInternal, "hash password")
	}

	created, err := s.repo.CreateUser(ctx, domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         req.Role,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.User{}, translate(err, "create user")
	}

	s.logger.Info().Str("username", created.Username).Str("role", created.Role).Msg("user created")
	return *created, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	return users, translate(err, "list users")
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.User, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return domain.User{}, err
	}
	if req.Role != nil && *req.Role != domain.RoleAdmin && *req.Role != domain.RoleCashier {
		return domain.User{}, apperr.Newf(apperr.CodeValidation, "unknown role %q", *req.Role)
	}

	passwordHash := ""
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return domain.User{}, apperr.New(apperr.CodeValidation, "password must be at least 8 characters")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, apperr.Wrap(err, apperr.CodeInternal, "hash password")
		}
		passwordHash = string(hash)
	}

	updated, err := s.repo.UpdateUser(ctx, strings.TrimSpace(id), req, passwordHash)
	if err != nil {
		return domain.User{}, translate(err, "update user")
	}
	return *updated, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.requireAdmin(ctx); err != nil {
		return err
	}
	actor, _ := ActorFromContext(ctx)
	if actor.ID != "" && actor.ID == id {
		return apperr.New(apperr.CodeValidation, "cannot delete your own account")
	}
	return translate(s.repo.DeleteUser(ctx, strings.TrimSpace(id)), "delete user")
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
