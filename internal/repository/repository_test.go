package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/renewal-analytics/internal/domain"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(v float64) *float64 { return &v }

func sampleContract(id, customer string, renewalInDays int) domain.Contract {
	return domain.Contract{
		ID:               id,
		CustomerID:       customer,
		CustomerName:     "Acme " + customer,
		ContractNumber:   "CN-" + id,
		StartDate:        day.AddDate(-1, 0, 0),
		EndDate:          day.AddDate(0, 0, renewalInDays),
		RenewalDate:      day.AddDate(0, 0, renewalInDays),
		TotalValue:       48000,
		Currency:         "USD",
		Status:           domain.ContractActive,
		BillingFrequency: domain.BillingMonthly,
		AutoRenewal:      true,
		CreatedAt:        day.AddDate(-1, 0, 0),
		UpdatedAt:        day,
	}
}

func TestContractRepo(t *testing.T) {
	repo := NewContractRepo(openTestDB(t))

	n, err := repo.BulkUpsert([]domain.Contract{
		sampleContract("C-1", "CUST-1", 90),
		sampleContract("C-2", "CUST-1", 30),
		sampleContract("C-3", "CUST-2", 200),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := repo.GetByID("C-2")
	require.NoError(t, err)
	assert.Equal(t, sampleContract("C-2", "CUST-1", 30), *got)

	_, err = repo.GetByID("C-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	all, err := repo.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "C-2", all[0].ID, "soonest renewal first")

	page, total, err := repo.List(ContractFilter{CustomerID: "CUST-1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, page, 1)

	// A later export replaces the stored contract.
	updated := sampleContract("C-1", "CUST-1", 90)
	updated.TotalValue = 60000
	_, err = repo.BulkUpsert([]domain.Contract{updated})
	require.NoError(t, err)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	got, err = repo.GetByID("C-1")
	require.NoError(t, err)
	assert.Equal(t, 60000.0, got.TotalValue)
}

func TestInvoiceRepo(t *testing.T) {
	repo := NewInvoiceRepo(openTestDB(t))

	paid := day.AddDate(0, 0, -40)
	invoices := []domain.Invoice{
		{ID: "INV-1", ContractID: "C-1", CustomerID: "CUST-1", Amount: 4000, Currency: "USD",
			DueDate: day.AddDate(0, 0, -45), PaidDate: &paid, Status: domain.InvoicePaid,
			LineItems: []domain.LineItem{{Description: "Platform", Quantity: 1, UnitPrice: 4000, Amount: 4000}},
			CreatedAt: day.AddDate(0, 0, -75)},
		{ID: "INV-2", ContractID: "C-1", CustomerID: "CUST-1", Amount: 4000, Currency: "USD",
			DueDate: day.AddDate(0, 0, -15), Status: domain.InvoiceOverdue, CreatedAt: day.AddDate(0, 0, -45)},
		{ID: "INV-3", ContractID: "C-2", CustomerID: "CUST-2", Amount: 900, Currency: "EUR",
			DueDate: day.AddDate(0, 0, 15), Status: domain.InvoiceSent, CreatedAt: day.AddDate(0, 0, -15)},
	}
	n, err := repo.BulkUpsert(invoices)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	byContract, err := repo.ListByContract("C-1")
	require.NoError(t, err)
	require.Len(t, byContract, 2)
	assert.Equal(t, "INV-2", byContract[0].ID, "newest first")
	assert.Nil(t, byContract[0].PaidDate)
	require.NotNil(t, byContract[1].PaidDate)
	assert.True(t, paid.Equal(*byContract[1].PaidDate))
	assert.Equal(t, invoices[0].LineItems, byContract[1].LineItems)

	outstanding, err := repo.GetOutstandingByCurrency()
	require.NoError(t, err)
	assert.Equal(t, []OutstandingByCurrency{
		{Currency: "EUR", Overdue: 0, Open: 900},
		{Currency: "USD", Overdue: 4000, Open: 4000},
	}, outstanding)
}

func TestSubscriptionRepo_UsageRoundTrip(t *testing.T) {
	repo := NewSubscriptionRepo(openTestDB(t))

	subs := []domain.Subscription{
		{ID: "SUB-1", ContractID: "C-1", CustomerID: "CUST-1", ProductID: "P-1", ProductName: "API",
			Quantity: 1, UnitPrice: 20, TotalPrice: 20, UsageAmount: floatPtr(1500), UsageLimit: floatPtr(1000),
			StartDate: day.AddDate(-1, 0, 0), EndDate: day.AddDate(1, 0, 0), Status: domain.SubscriptionActive},
		{ID: "SUB-2", ContractID: "C-1", CustomerID: "CUST-1", ProductID: "P-2", ProductName: "Seats",
			Quantity: 10, UnitPrice: 50, TotalPrice: 500,
			StartDate: day.AddDate(0, -6, 0), EndDate: day.AddDate(1, 0, 0), Status: domain.SubscriptionActive},
	}
	_, err := repo.BulkUpsert(subs)
	require.NoError(t, err)

	got, err := repo.ListByContract("C-1")
	require.NoError(t, err)
	assert.Equal(t, subs, got)
	assert.True(t, got[0].HasUsage())
	assert.False(t, got[1].HasUsage())
}

func TestScoreRepo(t *testing.T) {
	repo := NewScoreRepo(openTestDB(t))

	scores := []domain.RenewalHealthScore{
		{ContractID: "C-1", CustomerID: "CUST-1", Score: 92, RiskLevel: domain.RiskLow,
			Factors:         []domain.ScoreFactor{{Name: domain.FactorUsageTrend, Value: 100, Weight: 0.2, Impact: domain.ImpactPositive}},
			Recommendations: []string{}, CalculatedAt: day},
		{ContractID: "C-2", CustomerID: "CUST-2", Score: 22, RiskLevel: domain.RiskCritical,
			Factors:         []domain.ScoreFactor{},
			Recommendations: []string{"Start the renewal conversation now"}, CalculatedAt: day},
	}
	require.NoError(t, repo.SaveAll(scores))

	got, err := repo.GetByContract("C-1")
	require.NoError(t, err)
	assert.Equal(t, scores[0], *got)

	_, err = repo.GetByContract("C-404")
	assert.ErrorIs(t, err, ErrNotFound)

	// Rescoring replaces the previous score.
	rescored := scores[1]
	rescored.Score, rescored.RiskLevel = 45, domain.RiskHigh
	require.NoError(t, repo.SaveAll([]domain.RenewalHealthScore{rescored}))

	sum, err := repo.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 68.5, sum.AverageScore, 1e-9)
	assert.Equal(t, map[string]int{"low": 1, "high": 1}, sum.ByRiskLevel)

	critical, err := repo.ListByRiskLevel(string(domain.RiskCritical))
	require.NoError(t, err)
	assert.Empty(t, critical)
}

func TestAlertRepo(t *testing.T) {
	repo := NewAlertRepo(openTestDB(t))

	alerts := []domain.UnderbillingAlert{
		{ID: "UBA-1", ContractID: "C-1", CustomerID: "CUST-1", Type: domain.AlertUsageOverage,
			ExpectedAmount: 10000, Difference: 10000, Period: "2023-06-01 to 2025-06-01",
			Severity: domain.SeverityHigh, Description: "overage", DetectedAt: day},
		{ID: "UBA-2", ContractID: "C-2", CustomerID: "CUST-1", Type: domain.AlertRateMismatch,
			ExpectedAmount: 3000, ActualAmount: 1800, Difference: 1200, Period: "Invoice INV-9 (2024-05-01)",
			Severity: domain.SeverityMedium, Description: "rate", DetectedAt: day},
	}
	require.NoError(t, repo.AppendAlerts(alerts))

	all, err := repo.ListAlerts(domain.AlertQuery{})
	require.NoError(t, err)
	assert.Equal(t, alerts, all)

	ok, err := repo.ResolveAlert("UBA-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ResolveAlert("UBA-1")
	require.NoError(t, err)
	assert.True(t, ok, "re-resolving still reports the alert as found")

	ok, err = repo.ResolveAlert("UBA-404")
	require.NoError(t, err)
	assert.False(t, ok)

	open, err := repo.ListAlerts(domain.AlertQuery{CustomerID: "CUST-1", UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "UBA-2", open[0].ID)

	sum, err := repo.GetSummary()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalCount)
	assert.Equal(t, 1, sum.UnresolvedCount)
	assert.Equal(t, 1200.0, sum.UnresolvedAmount)
	assert.Equal(t, 1, sum.BySeverity["high"])
}

func TestRiskRepo(t *testing.T) {
	repo := NewRiskRepo(openTestDB(t))

	require.NoError(t, repo.AppendRisks([]domain.RenewalRisk{
		{ID: "R-1", ContractID: "C-1", CustomerID: "CUST-1", RiskType: domain.RiskChurn, RiskScore: 100,
			Indicators: []domain.RiskIndicator{
				{Name: "overdue_invoices", Value: 3, Threshold: 3, Exceeded: true},
				{Name: "risk_level", Value: "critical", Threshold: "critical", Exceeded: true},
			},
			FlaggedAt: day, Status: domain.RiskStatusNew},
		{ID: "R-2", ContractID: "C-2", CustomerID: "CUST-2", RiskType: domain.RiskLateRenewal, RiskScore: 85,
			Indicators: []domain.RiskIndicator{}, FlaggedAt: day, Status: domain.RiskStatusNew},
	}))

	churn, err := repo.ListRisks(domain.RiskQuery{RiskType: domain.RiskChurn})
	require.NoError(t, err)
	require.Len(t, churn, 1)
	require.Len(t, churn[0].Indicators, 2)
	assert.Equal(t, 3.0, churn[0].Indicators[0].Value, "JSON numbers decode as float64")
	assert.Equal(t, "critical", churn[0].Indicators[1].Value)

	ok, err := repo.UpdateRiskStatus("R-2", domain.RiskStatusResolved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateRiskStatus("R-404", domain.RiskStatusResolved)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err := repo.ListRisks(domain.RiskQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "R-1", active[0].ID)
}

func TestFileRepo(t *testing.T) {
	repo := NewFileRepo(openTestDB(t))

	exists, err := repo.ExistsByHash("abc")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Insert(&domain.IngestedFile{
		ID: "F-1", Format: "json_bundle", FileHash: "abc", RecordCount: 12, IngestedAt: day,
	}))

	exists, err = repo.ExistsByHash("abc")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, repo.Insert(&domain.IngestedFile{
		ID: "F-2", Format: "json_bundle", FileHash: "abc", RecordCount: 12, IngestedAt: day,
	}), "hash is unique")

	files, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMemoryAlertStore(t *testing.T) {
	store := NewMemoryAlertStore()
	require.NoError(t, store.AppendAlerts([]domain.UnderbillingAlert{
		{ID: "A", CustomerID: "X"}, {ID: "B", CustomerID: "Y"},
	}))

	ok, err := store.ResolveAlert("A")
	require.NoError(t, err)
	assert.True(t, ok)

	open, err := store.ListAlerts(domain.AlertQuery{UnresolvedOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "B", open[0].ID)
}

func TestMemoryRiskStore(t *testing.T) {
	store := NewMemoryRiskStore()
	require.NoError(t, store.AppendRisks([]domain.RenewalRisk{
		{ID: "R-1", RiskType: domain.RiskChurn, Status: domain.RiskStatusNew},
	}))

	ok, err := store.UpdateRiskStatus("R-1", domain.RiskStatusAcknowledged)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.ListRisks(domain.RiskQuery{})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskStatusAcknowledged, got[0].Status)
}
