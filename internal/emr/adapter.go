package emr

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/rs/zerolog"

	"github.com/dahanmed/careops/internal/shared/config"
	"github.com/dahanmed/careops/internal/shared/events"
	"github.com/dahanmed/careops/internal/shared/metrics"
	"github.com/dahanmed/careops/internal/visit"
)

// Legacy EMR tables. The schema is owned by the vendor software; we only
// ever read from it.
const (
	customerTable = "dbo.Customer"
	detailTable   = "dbo.Detail"
)

// Adapter reads the legacy MSSQL EMR: visit facts for the classifier and
// newly recorded services, which it publishes as service events.
type Adapter struct {
	db     *sql.DB
	config config.EMRConfig
	bus    events.Bus
	log    zerolog.Logger

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new EMR adapter
func New(cfg config.EMRConfig, bus events.Bus, log zerolog.Logger) *Adapter {
	return &Adapter{
		config: cfg,
		bus:    bus,
		log:    log,
	}
}

// Start opens the database connection and starts the service poll
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.config.Host,
		a.config.Port,
		a.config.Database,
		a.config.User,
		a.config.Password,
	)
	if a.config.Encrypt {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = time.Now().Add(-a.config.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop stops the adapter and closes the connection. The mutex is released
// before waiting on the poll goroutine, which takes it on every tick.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}

	return a.db.PingContext(ctx)
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// PatientVisitFacts pairs a patient with the typed facts of one visit
type PatientVisitFacts struct {
	PatientID   int64
	PatientName string
	Facts       visit.VisitFacts
}

// detailRow is one billing line joined with its patient registration
type detailRow struct {
	PatientID    int64
	PatientName  string
	RegisteredOn time.Time
	VisitDate    time.Time
	ItemName     string
	Copay        int64
	NonCovered   int64
}

// FetchVisitFacts reads every billing line for one day and folds them into
// per-patient visit facts
func (a *Adapter) FetchVisitFacts(ctx context.Context, date time.Time) ([]PatientVisitFacts, error) {
	if !a.IsConnected() {
		return nil, fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT
			c.CustomerNo,
			c.CustomerName,
			c.RegDate,
			d.MedicalDate,
			d.ItemName,
			d.OwnCost,
			d.GeneralCost
		FROM %s d
		INNER JOIN %s c ON d.CustomerNo = c.CustomerNo
		WHERE d.MedicalDate = @date
		ORDER BY c.CustomerNo
	`, detailTable, customerTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("date", date.Format("2006-01-02")))
	if err != nil {
		return nil, fmt.Errorf("failed to query visit details: %w", err)
	}
	defer rows.Close()

	var details []detailRow
	for rows.Next() {
		var d detailRow
		var itemName sql.NullString
		var copay, nonCovered sql.NullInt64

		err := rows.Scan(
			&d.PatientID,
			&d.PatientName,
			&d.RegisteredOn,
			&d.VisitDate,
			&itemName,
			&copay,
			&nonCovered,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit detail: %w", err)
		}

		if itemName.Valid {
			d.ItemName = itemName.String
		}
		if copay.Valid {
			d.Copay = copay.Int64
		}
		if nonCovered.Valid {
			d.NonCovered = nonCovered.Int64
		}

		details = append(details, d)
	}

	return aggregateFacts(details), nil
}

// aggregateFacts folds billing lines into one VisitFacts per patient.
// Input order is preserved: the EMR query sorts by patient.
func aggregateFacts(details []detailRow) []PatientVisitFacts {
	var result []PatientVisitFacts
	index := make(map[int64]int)

	for _, d := range details {
		i, seen := index[d.PatientID]
		if !seen {
			result = append(result, PatientVisitFacts{
				PatientID:   d.PatientID,
				PatientName: d.PatientName,
				Facts: visit.VisitFacts{
					RegistrationDate: d.RegisteredOn,
					VisitDate:        d.VisitDate,
				},
			})
			i = len(result) - 1
			index[d.PatientID] = i
		}

		facts := &result[i].Facts
		switch visit.TagLineItem(d.ItemName) {
		case visit.LineItemAutoInsurance:
			facts.HasAutoInsuranceLineItem = true
		case visit.LineItemIntakeFee:
			facts.HasIntakeFeeLineItem = true
		}
		if d.Copay > 0 {
			facts.CopayAmount += d.Copay
		}
		if d.NonCovered > 0 {
			facts.NonCoveredAmount += d.NonCovered
		}
	}

	return result
}

// serviceForItem maps a billing line to the service event it should emit.
// Only items that drive care triggers map to anything.
func serviceForItem(itemName string) string {
	switch visit.TagLineItem(itemName) {
	case visit.LineItemHerbal:
		return "herbal_delivery"
	case visit.LineItemIntakeFee:
		return "initial_visit"
	}
	return ""
}

// pollLoop scans for newly recorded billing lines and publishes the
// corresponding service events
func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			lastPoll := a.lastPoll
			a.lastPoll = time.Now()
			a.mu.Unlock()

			if err := a.pollServices(ctx, lastPoll); err != nil {
				a.log.Error().Err(err).Msg("failed to poll EMR services")
			}
		}
	}
}

// pollServices checks for billing lines recorded since the last poll
func (a *Adapter) pollServices(ctx context.Context, since time.Time) error {
	query := fmt.Sprintf(`
		SELECT
			c.CustomerNo,
			c.CustomerName,
			d.ItemName,
			d.InsertDate
		FROM %s d
		INNER JOIN %s c ON d.CustomerNo = c.CustomerNo
		WHERE d.InsertDate > @since
		ORDER BY d.InsertDate ASC
	`, detailTable, customerTable)

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var patientID int64
		var patientName string
		var itemName sql.NullString
		var recordedAt time.Time

		if err := rows.Scan(&patientID, &patientName, &itemName, &recordedAt); err != nil {
			continue
		}
		if !itemName.Valid {
			continue
		}

		service := serviceForItem(itemName.String)
		if service == "" {
			continue
		}

		event := events.NewEvent(events.TypeServicePrefix+service, "emr", patientID, patientName)
		event.Timestamp = recordedAt

		if err := a.bus.Publish(ctx, event); err != nil {
			a.log.Error().Err(err).
				Str("service", service).
				Int64("patient_id", patientID).
				Msg("failed to publish service event")
			continue
		}

		metrics.RecordServiceEvent(service)
	}

	return rows.Err()
}
