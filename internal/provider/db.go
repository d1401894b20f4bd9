package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/normalize"
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ExtractionFact is one extracted fact row as written by the extraction stage
type ExtractionFact struct {
	ID                 uint      `gorm:"primaryKey"`
	ClaimID            string    `gorm:"size:128;not null;index:idx_extraction_claim"`
	DocumentID         string    `gorm:"size:256;not null"`
	DocumentType       string    `gorm:"size:128"`
	RunID              string    `gorm:"column:extraction_run_id;size:128;not null"`
	ExtractedAt        time.Time `gorm:"not null"`
	DocumentConfidence *float64
	FactName           string `gorm:"size:256;not null"`
	RawValue           string `gorm:"type:text"`
	Confidence         *float64
}

// TableName pins the table name independent of gorm's naming strategy
func (ExtractionFact) TableName() string {
	return "extraction_facts"
}

// DBProvider reads extraction facts from a SQL database through gorm
type DBProvider struct {
	db     *gorm.DB
	driver string
}

// OpenDB opens a gorm connection for driver
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s provider requires a dsn", driver)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return db, nil
}

// OpenDBProvider opens the database and ensures the schema exists
func OpenDBProvider(driver, dsn string) (*DBProvider, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	p := NewDBProvider(db, driver)
	if err := p.Migrate(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewDBProvider wraps an existing gorm connection
func NewDBProvider(db *gorm.DB, driver string) *DBProvider {
	return &DBProvider{db: db, driver: driver}
}

// Migrate creates or updates the extraction_facts table
func (p *DBProvider) Migrate() error {
	if err := p.db.AutoMigrate(&ExtractionFact{}); err != nil {
		return fmt.Errorf("migrate extraction_facts: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (p *DBProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Name implements Provider
func (p *DBProvider) Name() string {
	return p.driver
}

// Merge inserts the rows not already stored for their claim, in one
// transaction, and returns how many were added. Importing the same
// extraction output twice leaves the table and the fingerprint unchanged.
func (p *DBProvider) Merge(ctx context.Context, rows []ExtractionFact) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	added := 0
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claims := make(map[string]bool)
		for _, r := range rows {
			claims[r.ClaimID] = true
		}
		ids := make([]string, 0, len(claims))
		for id := range claims {
			ids = append(ids, id)
		}

		var existing []ExtractionFact
		if err := tx.Where("claim_id IN ?", ids).Find(&existing).Error; err != nil {
			return err
		}
		stored := make(map[string]bool, len(existing))
		for _, r := range existing {
			stored[r.identity()] = true
		}

		fresh := make([]ExtractionFact, 0, len(rows))
		for _, r := range rows {
			if stored[r.identity()] {
				continue
			}
			stored[r.identity()] = true
			fresh = append(fresh, r)
		}
		if len(fresh) == 0 {
			return nil
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}
		added = len(fresh)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge extraction facts: %w", err)
	}
	return added, nil
}

func (r ExtractionFact) identity() string {
	return strings.Join([]string{r.ClaimID, r.DocumentID, r.RunID, r.FactName, r.RawValue}, "\x00")
}

// Collect implements Provider
func (p *DBProvider) Collect(ctx context.Context, claimID string) ([]model.FactCandidate, error) {
	var rows []ExtractionFact
	err := p.db.WithContext(ctx).
		Where("claim_id = ?", claimID).
		Order("extraction_run_id, document_id, id").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindProviderIO, claimID, "query extraction facts", err)
	}

	candidates := make([]model.FactCandidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, model.FactCandidate{
			FactName: row.FactName,
			RawValue: row.RawValue,
			Source: model.SourceDocument{
				DocumentID:         row.DocumentID,
				DocumentType:       row.DocumentType,
				RunID:              row.RunID,
				ExtractedAt:        row.ExtractedAt.UTC(),
				DocumentConfidence: row.DocumentConfidence,
			},
			Confidence: row.Confidence,
		})
	}
	return candidates, nil
}

// Fingerprint implements Fingerprinter. Rows are append-only, so the row
// count and highest id identify the claim's state.
func (p *DBProvider) Fingerprint(ctx context.Context, claimID string) (string, error) {
	var state struct {
		RowCount int64
		MaxID    uint
	}
	err := p.db.WithContext(ctx).
		Model(&ExtractionFact{}).
		Select("COUNT(*) AS row_count, COALESCE(MAX(id), 0) AS max_id").
		Where("claim_id = ?", claimID).
		Scan(&state).Error
	if err != nil {
		return "", fmt.Errorf("fingerprint claim %s: %w", claimID, err)
	}
	return fmt.Sprintf("%d:%d", state.RowCount, state.MaxID), nil
}

// ListClaims implements Provider
func (p *DBProvider) ListClaims(ctx context.Context) ([]string, error) {
	claims := []string{}
	err := p.db.WithContext(ctx).
		Model(&ExtractionFact{}).
		Distinct("claim_id").
		Order("claim_id").
		Pluck("claim_id", &claims).Error
	if err != nil {
		return nil, errors.Wrap(errors.KindProviderIO, "", "list claims", err)
	}
	return claims, nil
}

// RowsFromCandidates converts candidates to rows for Merge
func RowsFromCandidates(claimID string, candidates []model.FactCandidate) []ExtractionFact {
	rows := make([]ExtractionFact, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, ExtractionFact{
			ClaimID:            claimID,
			DocumentID:         c.Source.DocumentID,
			DocumentType:       c.Source.DocumentType,
			RunID:              c.Source.RunID,
			ExtractedAt:        c.Source.ExtractedAt.UTC(),
			DocumentConfidence: c.Source.DocumentConfidence,
			FactName:           c.FactName,
			RawValue:           normalize.RawString(c.RawValue),
			Confidence:         c.Confidence,
		})
	}
	return rows
}
