package service

import (
	"context"
	"time"

	"carledger/internal/config"
	"carledger/internal/dto"
	"carledger/internal/infra"
	"carledger/internal/model"
	"carledger/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconcileService merges snapshot reports into the car and ledger tables.
type ReconcileService interface {
	// Reconcile processes one batch of normalized rows for one snapshot date.
	// It never returns an error: on a batch-fatal failure the whole
	// transaction rolls back and the result carries zero counts plus the
	// diagnostic message.
	Reconcile(ctx context.Context, rows []dto.NormalizedRow, snapshotDate time.Time, kind dto.SourceKind) dto.ReconcileResult
}

type reconcileService struct {
	cars   repository.CarRepository
	ledger repository.LedgerRepository
	rdb    *redis.Client
	cfg    *config.Config
	now    func() time.Time
}

func NewReconcileService(
	cars repository.CarRepository,
	ledger repository.LedgerRepository,
	rdb *redis.Client,
	cfg *config.Config,
) ReconcileService {
	return &reconcileService{
		cars:   cars,
		ledger: ledger,
		rdb:    rdb,
		cfg:    cfg,
		now:    time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// truncateToDate drops the time-of-day component. Ledger dates and car date
// attributes are day-granular; normalizing here keeps the (car, date)
// uniqueness check honest across import runs in different timezones.
func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *reconcileService) Reconcile(ctx context.Context, rows []dto.NormalizedRow, snapshotDate time.Time, kind dto.SourceKind) dto.ReconcileResult {
	importID := s.now().Format("2006-01-02 15:04:05")
	snapshotDate = truncateToDate(snapshotDate)

	result := dto.ReconcileResult{ImportID: importID}

	txErr := runTx(ctx, s.cars.DB(), func(tx *gorm.DB) error {
		// Phase 1: cars. Touched cars are collected for the metric
		// recompute after the ledger phase.
		touched := make(map[int]*model.Car)

		for i := range rows {
			row := &rows[i]
			if row.StockN < s.cfg.CarStockFloor {
				log.Info().Int("stockn", row.StockN).Msg("reconcile: stock number below floor, skipping")
				result.RowsSkipped++
				continue
			}

			car, err := s.cars.FindByStockNTx(tx, row.StockN)
			switch {
			case err == repository.ErrCarNotFound && kind == dto.SourceKindFull:
				car = s.newCarFromRow(row, importID)
				if err := s.cars.CreateTx(tx, car); err != nil {
					return err
				}
				result.CarsAdded++
				touched[car.StockN] = car

			case err == repository.ErrCarNotFound:
				// Partial source cannot create a car — nothing to attach
				// the attributes to.
				log.Info().Int("stockn", row.StockN).Msg("reconcile: unknown car in partial report, skipping")
				result.RowsSkipped++

			case err != nil:
				return err

			case kind == dto.SourceKindFull:
				s.applyFullRow(car, row, importID)
				if err := s.cars.SaveTx(tx, car); err != nil {
					return err
				}
				result.CarsUpdated++
				touched[car.StockN] = car

			default: // existing car, partial source
				applyPartialRow(car, row, importID)
				if err := s.cars.SaveTx(tx, car); err != nil {
					return err
				}
				result.CarsUpdated++
			}
		}

		// Phase 2: ledger. Full reports only, and only above the stricter
		// ledger floor.
		if kind == dto.SourceKindFull {
			for i := range rows {
				row := &rows[i]
				if row.StockN < s.cfg.LedgerStockFloor {
					continue
				}
				added, err := s.appendLedgerEntry(tx, row, snapshotDate, importID)
				if err != nil {
					return err
				}
				if added {
					result.EntriesAdded++
				}
			}

			// Phase 3: recompute profit / xs for every touched car against
			// the ledger state that now includes this batch's entries.
			for _, car := range touched {
				latest, err := s.ledger.LatestTx(tx, car.StockN)
				if err != nil {
					return err
				}
				if latest != nil {
					car.Profit = CalculateProfit(latest.CumulativeAmount, car.Cost)
					car.Xs = CalculateXs(latest.CumulativeAmount, car.Cost)
				} else {
					car.Profit = nil
					car.Xs = nil
				}
				if car.Profit == nil {
					log.Debug().Int("stockn", car.StockN).Msg("reconcile: cost or cumulative missing, profit unset")
				}
				if err := s.cars.SaveTx(tx, car); err != nil {
					return err
				}
			}
		}

		return nil
	})

	if txErr != nil {
		log.Error().Err(txErr).Str("import_id", importID).Msg("reconcile: batch failed, rolled back")
		return dto.ReconcileResult{ImportID: importID, Error: txErr.Error()}
	}

	// Committed — signal readers that cached snapshots are stale.
	if s.rdb != nil {
		if _, err := infra.BumpSnapshotVersion(ctx, s.rdb); err != nil {
			log.Warn().Err(err).Msg("reconcile: snapshot version bump failed")
		}
	}

	log.Info().
		Str("import_id", importID).
		Int("cars_added", result.CarsAdded).
		Int("cars_updated", result.CarsUpdated).
		Int("entries_added", result.EntriesAdded).
		Int("rows_skipped", result.RowsSkipped).
		Msg("reconcile: batch committed")
	return result
}

// newCarFromRow builds a Car from a full-report row.
func (s *reconcileService) newCarFromRow(row *dto.NormalizedRow, importID string) *model.Car {
	car := &model.Car{
		StockN:        row.StockN,
		Make:          row.Make,
		Model:         row.Model,
		Year:          row.Year,
		Color:         row.Color,
		Mileage:       row.Mileage,
		Engine:        row.Engine,
		Location:      ComposeLocation(row.Bin, row.XCoord),
		Cost:          row.Cost,
		Inventoried:   dateOrNil(row.Inventoried),
		PurchaseDate:  dateOrNil(row.PurchaseDate),
		BreakevenDate: dateOrNil(row.BreakevenDate),
		Dismantled:    dateOrNil(row.Dismantled),
		ImportID:      importID,
	}
	car.Status = statusFor(car.Dismantled)
	car.Age = CalculateAge(car.Inventoried, s.now())
	car.Payback = CalculatePayback(car.BreakevenDate, car.Inventoried)
	return car
}

// applyFullRow overwrites only the fields present in the row, then recomputes
// the date-derived metrics. Location is fixed at creation; color, mileage and
// engine are set at creation and updated via partial reports only. A full
// report never touches those four on an existing car. Attribute overwrites
// are deliberately not no-op detected: re-importing the same report
// re-applies them.
func (s *reconcileService) applyFullRow(car *model.Car, row *dto.NormalizedRow, importID string) {
	if row.Make != nil {
		car.Make = row.Make
	}
	if row.Model != nil {
		car.Model = row.Model
	}
	if row.Year != nil {
		car.Year = row.Year
	}
	if row.Cost != nil {
		car.Cost = row.Cost
	}
	if row.Inventoried != nil {
		car.Inventoried = dateOrNil(row.Inventoried)
	}
	if row.PurchaseDate != nil {
		car.PurchaseDate = dateOrNil(row.PurchaseDate)
	}
	if row.BreakevenDate != nil {
		car.BreakevenDate = dateOrNil(row.BreakevenDate)
	}
	if row.Dismantled != nil {
		car.Dismantled = dateOrNil(row.Dismantled)
		car.Status = statusFor(car.Dismantled)
	}
	car.Age = CalculateAge(car.Inventoried, s.now())
	car.Payback = CalculatePayback(car.BreakevenDate, car.Inventoried)
	car.ImportID = importID
}

// applyPartialRow overwrites only the color / mileage / engine attributes.
func applyPartialRow(car *model.Car, row *dto.NormalizedRow, importID string) {
	if row.Color != nil {
		car.Color = row.Color
	}
	if row.Mileage != nil {
		car.Mileage = row.Mileage
	}
	if row.Engine != nil {
		car.Engine = row.Engine
	}
	car.ImportID = importID
}

// appendLedgerEntry writes one ledger entry for (row, date) unless one is
// already recorded. The change amount is the delta against the most recent
// earlier entry with a known cumulative, skipping zero-change placeholders;
// a first entry's change equals its own cumulative amount, and a missing
// cumulative amount yields a zero change.
func (s *reconcileService) appendLedgerEntry(tx *gorm.DB, row *dto.NormalizedRow, date time.Time, importID string) (bool, error) {
	exists, err := s.ledger.ExistsTx(tx, row.StockN, date)
	if err != nil {
		return false, err
	}
	if exists {
		log.Info().Int("stockn", row.StockN).Str("date", date.Format("2006-01-02")).
			Msg("reconcile: ledger entry already recorded, skipping")
		return false, nil
	}

	entry := &model.LedgerEntry{
		StockN:           row.StockN,
		Date:             date,
		CumulativeAmount: row.CumulativeAmount,
		ImportID:         importID,
	}

	if row.CumulativeAmount == nil {
		// Unknown cumulative: record the date with a zero delta so the
		// series stays continuous.
		entry.ChangeAmount = decimal.Zero
		log.Debug().Int("stockn", row.StockN).Msg("reconcile: cumulative amount missing, zero change recorded")
	} else {
		prev, err := s.ledger.LatestKnownBeforeTx(tx, row.StockN, date)
		if err != nil {
			return false, err
		}
		if prev != nil {
			entry.ChangeAmount = row.CumulativeAmount.Sub(*prev.CumulativeAmount)
		} else {
			entry.ChangeAmount = *row.CumulativeAmount
		}
	}

	if err := s.ledger.CreateTx(tx, entry); err != nil {
		return false, err
	}
	return true, nil
}

func statusFor(dismantled *time.Time) string {
	if dismantled != nil {
		return model.StatusScrap
	}
	return model.StatusActive
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := truncateToDate(*t)
	return &d
}
