package store

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/yurifrl/kupa/pkg/rows"
)

const schema = `
	CREATE TABLE IF NOT EXISTS report_rows (
		transaction_id TEXT PRIMARY KEY,
		date           TEXT NOT NULL,
		time           TEXT NOT NULL DEFAULT '',
		order_id       TEXT NOT NULL,
		invoice_num    TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		item_name      TEXT NOT NULL,
		item_code      TEXT NOT NULL DEFAULT '',
		quantity       NUMERIC NOT NULL DEFAULT 0,
		unit_price     NUMERIC NOT NULL DEFAULT 0,
		taxable_amount NUMERIC NOT NULL DEFAULT 0,
		sale_price     NUMERIC NOT NULL DEFAULT 0,
		vat_amount     NUMERIC NOT NULL DEFAULT 0,
		cashier        TEXT NOT NULL DEFAULT '',
		register       TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ordinal        BIGSERIAL
	);
	ALTER TABLE report_rows ADD COLUMN IF NOT EXISTS ordinal BIGSERIAL;
`

// appendQuery inserts one row per array element. Ordinals follow array order,
// which is print order within a transaction.
const appendQuery = `
	WITH inserted AS (
		INSERT INTO report_rows (
			transaction_id, date, time, order_id, invoice_num, payment_method,
			item_name, item_code, quantity, unit_price, taxable_amount,
			sale_price, vat_amount, cashier, register
		)
		SELECT
			t.transaction_id, t.date, t.time, t.order_id, t.invoice_num, t.payment_method,
			t.item_name, t.item_code, t.quantity::numeric, t.unit_price::numeric, t.taxable_amount::numeric,
			t.sale_price::numeric, t.vat_amount::numeric, t.cashier, t.register
		FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
			$6::text[], $7::text[], $8::text[], $9::text[], $10::text[],
			$11::text[], $12::text[], $13::text[], $14::text[], $15::text[]
		) WITH ORDINALITY AS t(
			transaction_id, date, time, order_id, invoice_num, payment_method,
			item_name, item_code, quantity, unit_price, taxable_amount,
			sale_price, vat_amount, cashier, register, n
		)
		ORDER BY t.n
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING 1
	)
	SELECT COUNT(*)::int FROM inserted
`

const readAllQuery = `
	SELECT transaction_id, date, time, order_id, invoice_num, payment_method,
		item_name, item_code, quantity::text, unit_price::text, taxable_amount::text,
		sale_price::text, vat_amount::text, cashier, register
	FROM report_rows
	ORDER BY date, time, order_id, ordinal
`

// Postgres stores rows in the report_rows table.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(ctx context.Context, databaseURL string, logger *log.Logger) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres store: database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create report_rows table: %w", err)
	}
	logger.Debug("postgres store ready")
	return &Postgres{pool: pool, logger: logger}, nil
}

// columns holds one text array per table column, in rows.Columns order.
type columns [15][]string

func toColumns(rs []rows.Row) columns {
	var c columns
	for i := range c {
		c[i] = make([]string, 0, len(rs))
	}
	for _, r := range rs {
		for i, v := range r.Values() {
			c[i] = append(c[i], v)
		}
	}
	return c
}

func (p *Postgres) Append(ctx context.Context, rs []rows.Row) (int, error) {
	fresh := dedupe(rs, nil)
	if len(fresh) == 0 {
		return 0, nil
	}
	c := toColumns(fresh)

	inserted := 0
	if err := p.pool.QueryRow(ctx, appendQuery, c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7], c[8], c[9], c[10], c[11], c[12], c[13], c[14]).Scan(&inserted); err != nil {
		return 0, fmt.Errorf("store report rows: %w", err)
	}
	p.logger.Debug("appended rows", "requested", len(rs), "inserted", inserted)
	return inserted, nil
}

func (p *Postgres) ReadAll(ctx context.Context) ([]rows.Row, error) {
	result, err := p.pool.Query(ctx, readAllQuery)
	if err != nil {
		return nil, fmt.Errorf("read report rows: %w", err)
	}
	defer result.Close()

	var out []rows.Row
	for result.Next() {
		var (
			r    rows.Row
			nums [5]string
		)
		if err := result.Scan(
			&r.TransactionID, &r.Date, &r.Time, &r.OrderID, &r.InvoiceNum, &r.PaymentMethod,
			&r.ItemName, &r.ItemCode, &nums[0], &nums[1], &nums[2], &nums[3], &nums[4],
			&r.Cashier, &r.Register,
		); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		dst := []*decimal.Decimal{&r.Quantity, &r.UnitPrice, &r.TaxableAmount, &r.SalePrice, &r.VATAmount}
		for i, s := range nums {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("decode %s of %s: %w", rows.Columns[8+i], r.TransactionID, err)
			}
			*dst[i] = d
		}
		out = append(out, r)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate report rows: %w", err)
	}
	return out, nil
}

func (p *Postgres) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM report_rows WHERE transaction_id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete report rows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
