package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yurifrl/kupa/pkg/config"
	"github.com/yurifrl/kupa/pkg/rows"
)

func row(order, item string) rows.Row {
	qty := decimal.NewFromInt(1)
	return rows.Row{
		TransactionID: rows.TransactionID("2024-03-15", order, item, qty),
		Date:          "2024-03-15",
		OrderID:       order,
		ItemName:      item,
		Quantity:      qty,
		SalePrice:     decimal.NewFromInt(12),
	}
}

func TestMemoryAppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	n, err := m.Append(ctx, []rows.Row{row("1", "Tea"), row("1", "Cake"), row("1", "Tea")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Append(ctx, []rows.Row{row("1", "Tea"), row("2", "Tea")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := m.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-15_1_Tea_1", all[0].TransactionID)
	assert.Equal(t, "2024-03-15_2_Tea_1", all[2].TransactionID)
}

func TestMemoryDerivesMissingIDs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	r := row("9", "Tea")
	r.TransactionID = ""

	n, err := m.Append(ctx, []rows.Row{r})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, _ := m.ReadAll(ctx)
	assert.Equal(t, "2024-03-15_9_Tea_1", all[0].TransactionID)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Append(ctx, []rows.Row{row("1", "Tea"), row("2", "Tea"), row("3", "Tea")})
	require.NoError(t, err)

	n, err := m.Delete(ctx, []string{"2024-03-15_2_Tea_1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, _ := m.ReadAll(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, "1", all[0].OrderID)
	assert.Equal(t, "3", all[1].OrderID)
	assert.NoError(t, m.Close())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.Store{Driver: "memory"}, log.Default())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(ctx, config.Store{Driver: "mongo"}, log.Default())
	assert.True(t, errors.Is(err, ErrUnknownDriver))

	_, err = Open(ctx, config.Store{Driver: "postgres"}, log.Default())
	assert.Error(t, err)

	_, err = Open(ctx, config.Store{Driver: "sheets"}, log.Default())
	assert.Error(t, err)
}

func TestMatchingRows(t *testing.T) {
	records := [][]string{
		{"Transaction_ID", "date"},
		{"a", "2024-03-15"},
		{"b", "2024-03-15"},
		{},
		{"a", "2024-03-16"},
	}
	assert.Equal(t, []int{4, 2, 1}, matchingRows(records, []string{"a", "b"}))
	assert.Nil(t, matchingRows(records, []string{"z"}))
	assert.Nil(t, matchingRows([][]string{{"date"}, {"a"}}, []string{"a"}))
	assert.Nil(t, matchingRows(nil, []string{"a"}))
}

func TestMatchingRowsLegacyIDs(t *testing.T) {
	records := [][]string{
		{"Transaction_ID", "Date"},
		{"2024-03-15_1001_Cappuccino_2.0", "2024-03-15"},
		{"2024-03-15_1001_Croissant_1", "2024-03-15"},
	}
	assert.Equal(t, []int{2, 1}, matchingRows(records, []string{"2024-03-15_1001_Cappuccino_2", "2024-03-15_1001_Croissant_1.00"}))
}

func TestCells(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "1.5"}, {}}, fromCells([][]interface{}{{"a", 1.5}, {}}))
	assert.Equal(t, []interface{}{"x", "y"}, toCells([]string{"x", "y"}))
}

func TestToColumns(t *testing.T) {
	c := toColumns([]rows.Row{row("1", "Tea"), row("2", "Cake")})
	assert.Equal(t, []string{"2024-03-15_1_Tea_1", "2024-03-15_2_Cake_1"}, c[0])
	assert.Equal(t, []string{"Tea", "Cake"}, c[6])
	assert.Equal(t, []string{"12", "12"}, c[11])
}

func TestPostgresKeepsLineOrder(t *testing.T) {
	assert.Contains(t, schema, "ordinal        BIGSERIAL")
	assert.Contains(t, schema, "ADD COLUMN IF NOT EXISTS ordinal BIGSERIAL")
	assert.Contains(t, appendQuery, "WITH ORDINALITY")
	assert.Contains(t, appendQuery, "ORDER BY t.n")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(readAllQuery), "ORDER BY date, time, order_id, ordinal"),
		"rows within one transaction must read back in insertion order")
}
