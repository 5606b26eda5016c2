package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"signaltrader/internal/models"
)

func TestNewTradeRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTradeRepository(db)
	if repo == nil {
		t.Fatal("NewTradeRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestTradeRepositoryCreate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		trade       *models.TradeRecord
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			trade: &models.TradeRecord{
				Timestamp:    now,
				Symbol:       "BTCUSDT",
				Direction:    models.SideLong,
				Entry:        50000.0,
				StopLoss:     49000.0,
				TakeProfit:   "51000(50%);52000(50%)",
				PositionSize: 0.5,
				OrderID:      "order-123",
				Status:       models.TradeStatusExecuted,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs(now, "BTCUSDT", models.SideLong, 50000.0, 49000.0, "51000(50%);52000(50%)", 0.5, "order-123", models.TradeStatusExecuted).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			expectError: false,
		},
		{
			name: "database error",
			trade: &models.TradeRecord{
				Timestamp: now,
				Symbol:    "BTCUSDT",
				Direction: models.SideShort,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs(now, "BTCUSDT", models.SideShort, float64(0), float64(0), "", float64(0), "", "").
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			err = repo.Create(tt.trade)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError && tt.trade.ID != 1 {
				t.Errorf("ID = %d, want 1", tt.trade.ID)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryUpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE trades`).
		WithArgs(models.TradeStatusClosed, "order-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewTradeRepository(db)
	if err := repo.UpdateStatus("order-123", models.TradeStatusClosed); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTradeRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE trades`).
		WithArgs(models.TradeStatusClosed, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewTradeRepository(db)
	err = repo.UpdateStatus("missing", models.TradeStatusClosed)
	if !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("err = %v, want ErrTradeNotFound", err)
	}
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "timestamp", "symbol", "direction", "entry", "stop_loss",
		"take_profit", "position_size", "order_id", "status",
	}).
		AddRow(2, now, "ETHUSDT", models.SideShort, 3000.0, 3100.0, "2900(100%)", 1.0, "order-2", models.TradeStatusExecuted).
		AddRow(1, now.Add(-time.Hour), "BTCUSDT", models.SideLong, 50000.0, 49000.0, "", 0.5, "order-1", models.TradeStatusClosed)

	mock.ExpectQuery(`SELECT .+ FROM trades`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if trades[0].Symbol != "ETHUSDT" || trades[1].Symbol != "BTCUSDT" {
		t.Errorf("unexpected order: %s, %s", trades[0].Symbol, trades[1].Symbol)
	}
}
