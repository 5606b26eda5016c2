// Package repository - опциональный журнал сделок в Postgres.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"signaltrader/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

// TradeRepository - работа с таблицей trades
//
// Дублирует CSV журнал в БД для выборок и отчётов. Источник истины
// по позициям всегда биржа, таблица только для аудита.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create создает запись о сделке
func (r *TradeRepository) Create(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (timestamp, symbol, direction, entry, stop_loss, take_profit, position_size, order_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now()
	}

	err := r.db.QueryRow(
		query,
		trade.Timestamp,
		trade.Symbol,
		trade.Direction,
		trade.Entry,
		trade.StopLoss,
		trade.TakeProfit,
		trade.PositionSize,
		trade.OrderID,
		trade.Status,
	).Scan(&trade.ID)

	if err != nil {
		return err
	}

	return nil
}

// UpdateStatus обновляет статус сделки по ID ордера
func (r *TradeRepository) UpdateStatus(orderID, status string) error {
	query := `
		UPDATE trades
		SET status = $1
		WHERE order_id = $2`

	result, err := r.db.Exec(query, status, orderID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// GetBySymbol возвращает сделки по символу
func (r *TradeRepository) GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, timestamp, symbol, direction, entry, stop_loss, take_profit, position_size, order_id, status
		FROM trades
		WHERE symbol = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetRecent возвращает последние N сделок
func (r *TradeRepository) GetRecent(limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, timestamp, symbol, direction, entry, stop_loss, take_profit, position_size, order_id, status
		FROM trades
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades читает строки выборки в записи журнала
func scanTrades(rows *sql.Rows) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.Timestamp,
			&trade.Symbol,
			&trade.Direction,
			&trade.Entry,
			&trade.StopLoss,
			&trade.TakeProfit,
			&trade.PositionSize,
			&trade.OrderID,
			&trade.Status,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
