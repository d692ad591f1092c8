package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"retailtrack/internal/domain"
	"retailtrack/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const itemColumns = `item_code, item_name, item_company, category, description, item_location,
	barcode, lower_limit, current_stock, purchase_price, retail_price, item_discount,
	created_at, updated_at`

func scanItem(row interface{ Scan(dest ...any) error }) (*domain.Item, error) {
	var it domain.Item
	var company, category, description, location, barcode sql.NullString
	err := row.Scan(&it.ItemCode, &it.ItemName, &company, &category, &description, &location,
		&barcode, &it.LowerLimit, &it.CurrentStock, &it.PurchasePrice, &it.RetailPrice,
		&it.ItemDiscount, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.ItemCompany = company.String
	it.Category = category.String
	it.Description = description.String
	it.ItemLocation = location.String
	it.Barcode = barcode.String
	return &it, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (
			item_code, item_name, item_company, category, description, item_location,
			barcode, lower_limit, current_stock, purchase_price, retail_price, item_discount,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, item.ItemCode, item.ItemName, nullIfEmpty(item.ItemCompany), nullIfEmpty(item.Category),
		nullIfEmpty(item.Description), nullIfEmpty(item.ItemLocation), nullIfEmpty(item.Barcode),
		item.LowerLimit, item.CurrentStock, item.PurchasePrice, item.RetailPrice,
		item.ItemDiscount, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "name") {
				return nil, store.ErrDuplicateName
			}
			return nil, store.ErrDuplicateCode
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) GetItemByCode(ctx context.Context, code string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE item_code = $1`, code)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return item, err
}

func (s *Store) ListItems(ctx context.Context, search string) ([]domain.Item, error) {
	// length-then-code ordering sorts rt2 before rt10
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY length(item_code), item_code`
	args := []any{}
	if needle := strings.TrimSpace(search); needle != "" {
		query = `SELECT ` + itemColumns + ` FROM items
			WHERE item_name ILIKE $1 OR item_code ILIKE $1
			ORDER BY length(item_code), item_code`
		args = append(args, "%"+needle+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 128)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateItem(ctx context.Context, code string, update domain.ItemUpdateRequest) (*domain.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE item_code = $1 FOR UPDATE`, code)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if update.ItemName != nil {
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

	_, err = tx.ExecContext(ctx, `
		UPDATE items SET
			item_name = $1, item_company = $2, category = $3, description = $4,
			item_location = $5, barcode = $6, lower_limit = $7, purchase_price = $8,
			retail_price = $9, item_discount = $10, updated_at = $11
		WHERE item_code = $12
	`, item.ItemName, nullIfEmpty(item.ItemCompany), nullIfEmpty(item.Category),
		nullIfEmpty(item.Description), nullIfEmpty(item.ItemLocation), nullIfEmpty(item.Barcode),
		item.LowerLimit, item.PurchasePrice, item.RetailPrice, item.ItemDiscount,
		item.UpdatedAt, code)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, store.ErrDuplicateName
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Store) DeleteItem(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE item_code = $1`, code)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AdjustStock applies the delta in one conditional statement so the
// non-negativity check and the write cannot be interleaved. The optional
// purchase price rides along in the same statement.
func (s *Store) AdjustStock(ctx context.Context, code string, delta int, purchasePrice *float64) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET current_stock = current_stock + $1,
			purchase_price = COALESCE($3::numeric, purchase_price),
			updated_at = now()
		WHERE item_code = $2 AND current_stock + $1 >= 0
		RETURNING `+itemColumns+`
	`, delta, code, purchasePrice)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		existing, lookupErr := s.GetItemByCode(ctx, code)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return nil, fmt.Errorf("%w: item %s has %d, requested %d",
			store.ErrInsufficientStock, code, existing.CurrentStock, -delta)
	}
	return item, err
}

func (s *Store) NextItemCode(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, seq) VALUES ('item_code', 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *Store) ListLowStockItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE current_stock <= lower_limit
		ORDER BY length(item_code), item_code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 16)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES ($1, $2, $3)
	`, category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, store.ErrDuplicateName
		}
		return nil, err
	}
	created := category
	return &created, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

// CreateSale runs the whole unit of work inside one serializable
// transaction: lock the item rows, verify stock per line, decrement, then
// insert the sale and its lines. Any failure rolls everything back.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	codes := uniqueCodes(sale.Items)
	stockRows, err := tx.QueryContext(ctx, `
		SELECT item_code, current_stock
		FROM items
		WHERE item_code = ANY($1)
		FOR UPDATE
	`, codes)
	if err != nil {
		return nil, err
	}
	stockMap := make(map[string]int, len(codes))
	for stockRows.Next() {
		var code string
		var stock int
		if err := stockRows.Scan(&code, &stock); err != nil {
			_ = stockRows.Close()
			return nil, err
		}
		stockMap[code] = stock
	}
	if err := stockRows.Err(); err != nil {
		_ = stockRows.Close()
		return nil, err
	}
	_ = stockRows.Close()

	needed := make(map[string]int, len(codes))
	for _, line := range sale.Items {
		needed[line.ItemCode] += line.Quantity
	}
	for _, line := range sale.Items {
		stock, exists := stockMap[line.ItemCode]
		if !exists {
			return nil, fmt.Errorf("%w: item %s", store.ErrNotFound, line.ItemCode)
		}
		if stock < needed[line.ItemCode] {
			return nil, fmt.Errorf("%w: item %s has %d, requested %d",
				store.ErrInsufficientStock, line.ItemCode, stock, needed[line.ItemCode])
		}
	}

	for code, qty := range needed {
		_, err = tx.ExecContext(ctx, `
			UPDATE items
			SET current_stock = current_stock - $1, updated_at = now()
			WHERE item_code = $2
		`, qty, code)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, total_amount, discount, net_value, cash_paid, balance,
			payment_type, customer_name, sold_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, sale.ID, sale.TotalAmount, sale.Discount, sale.NetValue, sale.CashPaid,
		sale.Balance, sale.PaymentType, nullIfEmpty(sale.CustomerName), nullIfEmpty(sale.SoldBy), sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range sale.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, item_code, item_name, quantity, price, discount, total_price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, line.ItemCode, line.ItemName, line.Quantity, line.Price, line.Discount, line.TotalPrice)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, total_amount, discount, net_value, cash_paid, balance,
			payment_type, customer_name, sold_by, created_at
		FROM sales
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return sales, nil
	}
	linesBySale, err := s.loadSaleLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Items = linesBySale[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, total_amount, discount, net_value, cash_paid, balance,
			payment_type, customer_name, sold_by, created_at
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	linesBySale, err := s.loadSaleLines(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Items = linesBySale[sale.ID]
	return sale, nil
}

func scanSale(row interface{ Scan(dest ...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var customerName, soldBy sql.NullString
	err := row.Scan(&sale.ID, &sale.TotalAmount, &sale.Discount, &sale.NetValue,
		&sale.CashPaid, &sale.Balance, &sale.PaymentType, &customerName, &soldBy, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CustomerName = customerName.String
	sale.SoldBy = soldBy.String
	return &sale, nil
}

func (s *Store) loadSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, item_code, item_name, quantity, price, discount, total_price
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY id
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	linesBySale := make(map[string][]domain.SaleLine, len(saleIDs))
	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ItemCode, &line.ItemName, &line.Quantity,
			&line.Price, &line.Discount, &line.TotalPrice); err != nil {
			return nil, err
		}
		linesBySale[saleID] = append(linesBySale[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return linesBySale, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, display_name, role, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.ID, user.Username, user.PasswordHash, nullIfEmpty(user.DisplayName), user.Role, user.CreatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, store.ErrDuplicateUser
		}
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, display_name, role, created_at
		FROM users
		WHERE username = $1
	`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, display_name, role, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, 16)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var user domain.User
	var displayName sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &displayName, &user.Role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.DisplayName = displayName.String
	return &user, nil
}

func (s *Store) UpdateUser(ctx context.Context, id string, update domain.UserUpdateRequest, passwordHash string) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, username, password_hash, display_name, role, created_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
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

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $1, display_name = $2, role = $3 WHERE id = $4
	`, user.PasswordHash, nullIfEmpty(user.DisplayName), user.Role, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func uniqueCodes(lines []domain.SaleLine) []string {
	seen := make(map[string]bool, len(lines))
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		if seen[line.ItemCode] {
			continue
		}
		seen[line.ItemCode] = true
		codes = append(codes, line.ItemCode)
	}
	return codes
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
