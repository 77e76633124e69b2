package repository

import (
	"context"
	"errors"

	"carledger/internal/dto"
	"carledger/internal/model"

	"gorm.io/gorm"
)

// CarRepository defines the data access contract for cars.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory stubs.
type CarRepository interface {
	FindByStockN(ctx context.Context, stockN int) (*model.Car, error)
	List(ctx context.Context, filter dto.CarFilter) ([]model.Car, error)
	ListAll(ctx context.Context) ([]model.Car, error)

	// Used inside transactions — callers pass the tx instance (nil in unit
	// test mode, where stubs ignore it).
	FindByStockNTx(tx *gorm.DB, stockN int) (*model.Car, error)
	CreateTx(tx *gorm.DB, car *model.Car) error
	SaveTx(tx *gorm.DB, car *model.Car) error

	// Save outside any transaction (age refresh job).
	Save(ctx context.Context, car *model.Car) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

// ErrCarNotFound is returned when no car matches the stock number.
var ErrCarNotFound = errors.New("car not found")

type carRepo struct{ db *gorm.DB }

func NewCarRepository(db *gorm.DB) CarRepository { return &carRepo{db: db} }

func (r *carRepo) DB() *gorm.DB { return r.db }

func (r *carRepo) dbOr(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *carRepo) FindByStockN(ctx context.Context, stockN int) (*model.Car, error) {
	var c model.Car
	err := r.db.WithContext(ctx).Where("stock_n = ?", stockN).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *carRepo) FindByStockNTx(tx *gorm.DB, stockN int) (*model.Car, error) {
	var c model.Car
	err := r.dbOr(tx).Where("stock_n = ?", stockN).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *carRepo) List(ctx context.Context, filter dto.CarFilter) ([]model.Car, error) {
	q := r.db.WithContext(ctx).Model(&model.Car{})

	// Status filter: "scrap" = scrapped only, "all" = everything,
	// anything else = active (default)
	switch filter.Status {
	case "scrap":
		q = q.Where("status = ?", model.StatusScrap)
	case "all":
		// no filter
	default:
		q = q.Where("status = ?", model.StatusActive)
	}
	if filter.Make != "" {
		q = q.Where("make = ?", filter.Make)
	}
	if filter.Model != "" {
		q = q.Where("model = ?", filter.Model)
	}

	var cars []model.Car
	err := q.Order("stock_n ASC").Find(&cars).Error
	return cars, err
}

func (r *carRepo) ListAll(ctx context.Context) ([]model.Car, error) {
	var cars []model.Car
	err := r.db.WithContext(ctx).Order("stock_n ASC").Find(&cars).Error
	return cars, err
}

func (r *carRepo) CreateTx(tx *gorm.DB, car *model.Car) error {
	return r.dbOr(tx).Create(car).Error
}

func (r *carRepo) SaveTx(tx *gorm.DB, car *model.Car) error {
	return r.dbOr(tx).Save(car).Error
}

func (r *carRepo) Save(ctx context.Context, car *model.Car) error {
	return r.db.WithContext(ctx).Save(car).Error
}
