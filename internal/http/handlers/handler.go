package handlers

import (
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/catalog"
	"mesa-table-service/internal/config"
	"mesa-table-service/internal/dayclose"
	"mesa-table-service/internal/orders"
	"mesa-table-service/internal/payments"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB          *pgxpool.Pool
	Logger      *zap.Logger
	Config      config.Config
	Intake      *orders.Intake
	Coordinator *orders.Coordinator
	Ledger      *billing.Ledger
	Settlement  *payments.Settlement
	DayClose    *dayclose.Engine
	Catalog     *catalog.Catalog
}
