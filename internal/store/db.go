package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/domain"
	"github.com/usharma123/Startup-Success-Forecasting-Framework/internal/evaluator"
)

var (
	// ErrNotFound is returned when a report id does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrReportExists is returned when saving a report id twice.
	ErrReportExists = errors.New("report already stored")
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Report{}, &Assessment{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// GORM exposes the raw gorm.DB handle.
func (d *Database) GORM() *gorm.DB {
	return d.gorm
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveReport appends a report with its assessments in one transaction.
func (d *Database) SaveReport(report *domain.EvaluationReport) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if strings.TrimSpace(report.ID) == "" {
		return errors.New("report id is empty")
	}
	row, err := FromReport(report)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Report{}).Where("id = ?", row.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", ErrReportExists, row.ID)
		}
		return tx.Create(&row).Error
	})
}

// GetReport loads one report with its assessments.
func (d *Database) GetReport(id string) (*domain.EvaluationReport, error) {
	var row Report
	err := d.gorm.Preload("Assessments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&row, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain()
}

// ReportQuery filters and pages report listings.
type ReportQuery struct {
	Sector         string
	Recommendation string
	Query          string
	Degraded       *bool
	Offset         int
	Limit          int
	Sort           string
}

// ListReports returns paginated reports, newest first unless Sort says otherwise.
// Assessments are loaded too.
func (d *Database) ListReports(opts ReportQuery) ([]*domain.EvaluationReport, int64, error) {
	var total int64
	base := d.gorm.Model(&Report{})
	if sector := NormalizeSector(opts.Sector); sector != "" {
		base = base.Where("sector = ?", sector)
	}
	if rec := strings.TrimSpace(opts.Recommendation); rec != "" {
		base = base.Where("recommendation = ?", strings.ToLower(rec))
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		like := fmt.Sprintf("%%%s%%", strings.ToLower(q))
		base = base.Where("name_normalized LIKE ? OR sector LIKE ?", like, like)
	}
	if opts.Degraded != nil {
		base = base.Where("degraded = ?", *opts.Degraded)
	}

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	queryBuilder := base.Order(orderForSort(opts.Sort)).Offset(opts.Offset)
	if opts.Limit > 0 {
		queryBuilder = queryBuilder.Limit(opts.Limit)
	}

	var rows []Report
	if err := queryBuilder.Preload("Assessments", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*domain.EvaluationReport, 0, len(rows))
	for _, row := range rows {
		report, err := row.ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, report)
	}
	return out, total, nil
}

// Comparables returns recent determined reports in the same sector, excluding the named
// startup, for use as prior cases.
func (d *Database) Comparables(sector, excludeName string, limit int) ([]evaluator.Comparable, error) {
	if limit <= 0 {
		limit = 5
	}
	var rows []Report
	err := d.gorm.Model(&Report{}).
		Select("name", "sector", "stage", "recommendation", "composite_score", "finished_at").
		Where("sector = ?", NormalizeSector(sector)).
		Where("name_normalized <> ?", strings.ToLower(strings.TrimSpace(excludeName))).
		Where("recommendation <> ?", string(domain.RecommendationUndetermined)).
		Order("finished_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]evaluator.Comparable, 0, len(rows))
	for _, row := range rows {
		out = append(out, evaluator.Comparable{
			Name:           row.Name,
			Sector:         row.Sector,
			Stage:          domain.Stage(row.Stage),
			Recommendation: domain.Recommendation(row.Recommendation),
			CompositeScore: row.CompositeScore,
			EvaluatedAt:    row.FinishedAt.UTC(),
		})
	}
	return out, nil
}

// CountReports returns the number of stored reports.
func (d *Database) CountReports() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Report{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func orderForSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "name_asc":
		return "reports.name_normalized ASC"
	case "name_desc":
		return "reports.name_normalized DESC"
	case "score_desc":
		return "reports.composite_score DESC, reports.finished_at DESC"
	case "score_asc":
		return "reports.composite_score ASC, reports.finished_at DESC"
	case "created_asc":
		return "reports.finished_at ASC"
	default:
		return "reports.finished_at DESC"
	}
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_reports_sector_finished ON reports(sector, finished_at)",
		"CREATE INDEX IF NOT EXISTS idx_assessments_report_position ON assessments(report_id, position)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
