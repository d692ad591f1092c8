package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"retailtrack/internal/domain"
	"retailtrack/internal/store"
)

const itemCodeCounter = "item_code"

type Store struct {
	mu           sync.RWMutex
	items        map[string]domain.Item
	counters     map[string]int64
	categories   map[string]domain.Category
	sales        []domain.Sale
	usersByID    map[string]domain.User
	userIDByName map[string]string
}

func New() *Store {
	return &Store{
		items:        make(map[string]domain.Item),
		counters:     map[string]int64{itemCodeCounter: 0},
		categories:   make(map[string]domain.Category),
		sales:        make([]domain.Sale, 0, 64),
		usersByID:    make(map[string]domain.User),
		userIDByName: make(map[string]string),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when
// unset, hardcoded dev defaults are used with a warning. These credentials
// are never used in production (the backend uses PostgreSQL when
// DATABASE_URL is set).
func seedUsers() (map[string]domain.User, map[string]string) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	byID := map[string]domain.User{}
	byName := map[string]string{}
	for _, u := range []struct {
		username string
		password string
		display  string
		role     string
	}{
		{"admin", adminPwd, "Administrator", domain.RoleAdmin},
		{"cashier", cashierPwd, "Counter Staff", domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		id := uuid.NewString()
		byID[id] = domain.User{
			ID:           id,
			Username:     u.username,
			PasswordHash: string(hash),
			DisplayName:  u.display,
			Role:         u.role,
			CreatedAt:    now,
		}
		byName[u.username] = id
	}
	return byID, byName
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	items := []domain.Item{
		{ItemCode: "rt1", ItemName: "Notebook A5", ItemCompany: "PaperWorks", Category: "stationery", LowerLimit: 10, CurrentStock: 80, PurchasePrice: 60, RetailPrice: 100, CreatedAt: now, UpdatedAt: now},
		{ItemCode: "rt2", ItemName: "Ballpoint Pen Blue", ItemCompany: "PaperWorks", Category: "stationery", LowerLimit: 20, CurrentStock: 200, PurchasePrice: 10, RetailPrice: 20, CreatedAt: now, UpdatedAt: now},
		{ItemCode: "rt3", ItemName: "AA Battery 4-pack", ItemCompany: "VoltCell", Category: "electronics", LowerLimit: 15, CurrentStock: 60, PurchasePrice: 140, RetailPrice: 220, CreatedAt: now, UpdatedAt: now},
		{ItemCode: "rt4", ItemName: "Dish Soap 500ml", ItemCompany: "CleanCo", Category: "household", LowerLimit: 12, CurrentStock: 45, PurchasePrice: 85, RetailPrice: 130, CreatedAt: now, UpdatedAt: now},
		{ItemCode: "rt5", ItemName: "Masking Tape 24mm", ItemCompany: "StickRight", Category: "hardware", LowerLimit: 8, CurrentStock: 30, PurchasePrice: 35, RetailPrice: 60, CreatedAt: now, UpdatedAt: now},
	}

	itemMap := make(map[string]domain.Item, len(items))
	categories := map[string]domain.Category{}
	seen := map[string]bool{}
	for _, it := range items {
		itemMap[it.ItemCode] = it
		if it.Category != "" && !seen[it.Category] {
			seen[it.Category] = true
			id := uuid.NewString()
			categories[id] = domain.Category{ID: id, Name: it.Category, CreatedAt: now}
		}
	}

	usersByID, userIDByName := seedUsers()
	return &Store{
		items:        itemMap,
		counters:     map[string]int64{itemCodeCounter: int64(len(items))},
		categories:   categories,
		sales:        make([]domain.Sale, 0, 64),
		usersByID:    usersByID,
		userIDByName: userIDByName,
	}
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ItemCode]; exists {
		return nil, store.ErrDuplicateCode
	}
	for _, existing := range s.items {
		if strings.EqualFold(existing.ItemName, item.ItemName) {
			return nil, store.ErrDuplicateName
		}
	}

	s.items[item.ItemCode] = item
	created := item
	return &created, nil
}

func (s *Store) GetItemByCode(_ context.Context, code string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) ListItems(_ context.Context, search string) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	items := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		if needle != "" &&
			!strings.Contains(strings.ToLower(it.ItemName), needle) &&
			!strings.Contains(strings.ToLower(it.ItemCode), needle) {
			continue
		}
		items = append(items, it)
	}
	sortByCode(items)
	return items, nil
}

func (s *Store) UpdateItem(_ context.Context, code string, update domain.ItemUpdateRequest) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	if update.ItemName != nil {
		for existingCode, existing := range s.items {
			if existingCode != code && strings.EqualFold(existing.ItemName, *update.ItemName) {
				return nil, store.ErrDuplicateName
			}
		}
		item.ItemName = *update.ItemName
	}
	if update.ItemCompany != nil {
		item.ItemCompany = *update.ItemCompany
	}
	if update.Category != nil {
		item.Category = *update.Category
	}
	if update.Description != nil {
		item.Description = *update.Description
	}
	if update.ItemLocation != nil {
		item.ItemLocation = *update.ItemLocation
	}
	if update.Barcode != nil {
		item.Barcode = *update.Barcode
	}
	if update.LowerLimit != nil {
		item.LowerLimit = *update.LowerLimit
	}
	if update.PurchasePrice != nil {
		item.PurchasePrice = *update.PurchasePrice
	}
	if update.RetailPrice != nil {
		item.RetailPrice = *update.RetailPrice
	}
	if update.ItemDiscount != nil {
		item.ItemDiscount = *update.ItemDiscount
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[code] = item

	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[code]; !exists {
		return store.ErrNotFound
	}
	delete(s.items, code)
	return nil
}

func (s *Store) AdjustStock(_ context.Context, code string, delta int, purchasePrice *float64) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[code]
	if !exists {
		return nil, store.ErrNotFound
	}
	next := item.CurrentStock + delta
	if next < 0 {
		return nil, fmt.Errorf("%w: item %s has %d, requested %d", store.ErrInsufficientStock, code, item.CurrentStock, -delta)
	}
	item.CurrentStock = next
	if purchasePrice != nil {
		item.PurchasePrice = *purchasePrice
	}
	item.UpdatedAt = time.Now().UTC()
	s.items[code] = item

	updated := item
	return &updated, nil
}

func (s *Store) NextItemCode(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[itemCodeCounter]++
	return s.counters[itemCodeCounter], nil
}

func (s *Store) ListLowStockItems(_ context.Context) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0, 8)
	for _, it := range s.items {
		if it.CurrentStock <= it.LowerLimit {
			items = append(items, it)
		}
	}
	sortByCode(items)
	return items, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrDuplicateName
		}
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		categories = append(categories, c)
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

// CreateSale applies every stock decrement and appends the sale under one
// lock section, so concurrent sales against the same item cannot both pass
// the stock check.
func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// lines may repeat a code, so the check runs against the summed quantity
	needed := make(map[string]int, len(sale.Items))
	for _, line := range sale.Items {
		needed[line.ItemCode] += line.Quantity
	}
	for _, line := range sale.Items {
		item, exists := s.items[line.ItemCode]
		if !exists {
			return nil, fmt.Errorf("%w: item %s", store.ErrNotFound, line.ItemCode)
		}
		if item.CurrentStock < needed[line.ItemCode] {
			return nil, fmt.Errorf("%w: item %s has %d, requested %d", store.ErrInsufficientStock, line.ItemCode, item.CurrentStock, needed[line.ItemCode])
		}
	}

	now := time.Now().UTC()
	for code, qty := range needed {
		item := s.items[code]
		item.CurrentStock -= qty
		item.UpdatedAt = now
		s.items[code] = item
	}

	s.sales = append(s.sales, sale)
	created := sale
	return &created, nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, len(s.sales))
	copy(sales, s.sales)
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sales, nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sale := range s.sales {
		if sale.ID == id {
			copySale := sale
			return &copySale, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.userIDByName[user.Username]; exists {
		return nil, store.ErrDuplicateUser
	}
	s.usersByID[user.ID] = user
	s.userIDByName[user.Username] = user.ID
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.userIDByName[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, id string, update domain.UserUpdateRequest, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	if passwordHash != "" {
		user.PasswordHash = passwordHash
	}
	s.usersByID[id] = user

	updated := user
	return &updated, nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return store.ErrNotFound
	}
	delete(s.usersByID, id)
	delete(s.userIDByName, user.Username)
	return nil
}

func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.usersByID), nil
}

// sortByCode orders items rt1, rt2, ... rt10 numerically, falling back to
// plain string order for codes without the rt prefix.
func sortByCode(items []domain.Item) {
	slices.SortFunc(items, func(a, b domain.Item) int {
		an, aok := codeNumber(a.ItemCode)
		bn, bok := codeNumber(b.ItemCode)
		if aok && bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
		return strings.Compare(a.ItemCode, b.ItemCode)
	})
}

func codeNumber(code string) (int64, bool) {
	rest, found := strings.CutPrefix(code, "rt")
	if !found {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
