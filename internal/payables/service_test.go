package payables

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trainops/trainops-erp/internal/platform/httpx"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

type memoryRepo struct {
	mu       sync.Mutex
	vendors  map[int64]Vendor
	payables []Payable
	nextID   int64
	locked   []int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{vendors: make(map[int64]Vendor)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := append([]Payable(nil), r.payables...)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.payables = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createVendor(v), nil
}

func (r *memoryRepo) createVendor(v Vendor) Vendor {
	r.nextID++
	v.ID = r.nextID
	v.CreatedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r.vendors[v.ID] = v
	return v
}

func (r *memoryRepo) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getVendor(id)
}

func (r *memoryRepo) getVendor(id int64) (Vendor, error) {
	v, ok := r.vendors[id]
	if !ok {
		return Vendor{}, ErrVendorNotFound
	}
	return v, nil
}

func (r *memoryRepo) LockVendor(ctx context.Context, id int64) (Vendor, error) {
	return Vendor{}, errors.New("lock outside transaction")
}

func (r *memoryRepo) CumulativeTotal(ctx context.Context, vendorID int64, fy string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cumulative(vendorID, fy), nil
}

func (r *memoryRepo) cumulative(vendorID int64, fy string) decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.payables {
		if p.VendorID == vendorID && p.FiscalYear == fy {
			total = total.Add(p.PaymentAmount)
		}
	}
	return total
}

func (r *memoryRepo) InsertPayable(ctx context.Context, p Payable) (Payable, error) {
	return Payable{}, errors.New("insert outside transaction")
}

func (r *memoryRepo) insertPayable(p Payable) (Payable, error) {
	for _, existing := range r.payables {
		if existing.Reference == p.Reference {
			return Payable{}, ErrDuplicateReference
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = p.PaidAt
	r.payables = append(r.payables, p)
	return p, nil
}

func (r *memoryRepo) ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payable
	for _, p := range r.payables {
		if req.VendorID != 0 && p.VendorID != req.VendorID {
			continue
		}
		if req.FiscalYear != "" && p.FiscalYear != req.FiscalYear {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) SectionSummary(ctx context.Context, fy string) ([]SectionSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bySection := map[taxcalc.Section]*SectionSummary{}
	for _, p := range r.payables {
		if p.FiscalYear != fy {
			continue
		}
		s, ok := bySection[p.Section]
		if !ok {
			s = &SectionSummary{Section: p.Section, Gross: decimal.Zero, TDS: decimal.Zero}
			bySection[p.Section] = s
		}
		s.Payables++
		s.Gross = s.Gross.Add(p.PaymentAmount)
		s.TDS = s.TDS.Add(p.TDSAmount)
		if p.ComplianceStatus == taxcalc.StatusPendingPAN {
			s.PendingPAN++
		}
	}
	var out []SectionSummary
	for _, s := range bySection {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Section < out[j].Section })
	return out, nil
}

func (r *memoryRepo) VendorsWithPayables(ctx context.Context, fy string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	var ids []int64
	for _, p := range r.payables {
		if p.FiscalYear == fy && !seen[p.VendorID] {
			seen[p.VendorID] = true
			ids = append(ids, p.VendorID)
		}
	}
	return ids, nil
}

// memoryTx runs with repo.mu already held by WithTx.
type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}
func (t *memoryTx) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	return t.repo.createVendor(v), nil
}
func (t *memoryTx) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return t.repo.getVendor(id)
}
func (t *memoryTx) LockVendor(ctx context.Context, id int64) (Vendor, error) {
	t.repo.locked = append(t.repo.locked, id)
	return t.repo.getVendor(id)
}
func (t *memoryTx) CumulativeTotal(ctx context.Context, vendorID int64, fy string) (decimal.Decimal, error) {
	return t.repo.cumulative(vendorID, fy), nil
}
func (t *memoryTx) InsertPayable(ctx context.Context, p Payable) (Payable, error) {
	return t.repo.insertPayable(p)
}
func (t *memoryTx) ListPayables(ctx context.Context, req ListPayablesRequest) ([]Payable, error) {
	return nil, errors.New("not used in tx")
}
func (t *memoryTx) SectionSummary(ctx context.Context, fy string) ([]SectionSummary, error) {
	return nil, errors.New("not used in tx")
}
func (t *memoryTx) VendorsWithPayables(ctx context.Context, fy string) ([]int64, error) {
	return nil, errors.New("not used in tx")
}

var (
	may2024 = time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)
	feb2025 = time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	may2025 = time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	svc.now = func() time.Time { return may2024 }
	return svc, repo
}

func TestCreateVendorNormalisesInput(t *testing.T) {
	svc, _ := newTestService(t)
	v, err := svc.CreateVendor(context.Background(), CreateVendorInput{
		Name:            "  Acme Labs ",
		Category:        "company",
		NatureOfService: "technical_services",
		PAN:             "abcde1234f",
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Labs", v.Name)
	require.Equal(t, taxcalc.CategoryCompany, v.Category)
	require.Equal(t, taxcalc.NatureTechnicalServices, v.NatureOfService)
	require.Equal(t, "ABCDE1234F", v.PAN)
	require.True(t, v.PANProvided())
}

func TestCreateVendorValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVendor(ctx, CreateVendorInput{Category: "Company", NatureOfService: "Contractor"})
	require.ErrorIs(t, err, ErrVendorNameRequired)

	_, err = svc.CreateVendor(ctx, CreateVendorInput{Name: "X", Category: "Trust", NatureOfService: "Contractor"})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorIs(t, err, taxcalc.ErrInvalidInput)

	_, err = svc.CreateVendor(ctx, CreateVendorInput{Name: "X", Category: "Company", NatureOfService: "Contractor", PAN: "123"})
	require.ErrorIs(t, err, ErrInvalidPAN)
}

func TestRecordPayableAccumulatesWithinFiscalYear(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	vendor := repo.createVendor(Vendor{Name: "Trainer", Category: taxcalc.CategoryIndividual, NatureOfService: taxcalc.NatureContractor, PAN: "ABCDE1234F"})

	first, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R1", Amount: decimal.NewFromInt(25000), PaidAt: may2024})
	require.NoError(t, err)
	require.False(t, first.ThresholdExceeded)
	require.True(t, first.TDSAmount.IsZero())

	second, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R2", Amount: decimal.NewFromInt(25000), PaidAt: feb2025})
	require.NoError(t, err)
	require.Equal(t, "25000", second.CumulativeBefore.String())
	require.False(t, second.ThresholdExceeded)

	third, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R3", Amount: decimal.NewFromInt(25000), PaidAt: feb2025})
	require.NoError(t, err)
	require.Equal(t, "50000", third.CumulativeBefore.String())
	require.False(t, third.ThresholdExceeded)

	fourth, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R4", Amount: decimal.NewFromInt(30000), PaidAt: feb2025})
	require.NoError(t, err)
	require.Equal(t, "75000", fourth.CumulativeBefore.String())
	require.True(t, fourth.ThresholdExceeded)
	require.Equal(t, taxcalc.Section194C, fourth.Section)
	require.Equal(t, "300", fourth.TDSAmount.String())
	require.Equal(t, "29700", fourth.NetPayable.String())
	require.Equal(t, "2024-25", fourth.FiscalYear)

	nextYear, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R5", Amount: decimal.NewFromInt(30000), PaidAt: may2025})
	require.NoError(t, err)
	require.Equal(t, "2025-26", nextYear.FiscalYear)
	require.True(t, nextYear.CumulativeBefore.IsZero())
	require.False(t, nextYear.ThresholdExceeded)

	require.Equal(t, []int64{vendor.ID, vendor.ID, vendor.ID, vendor.ID, vendor.ID}, repo.locked)
}

func TestRecordPayableMissingPANGoesPending(t *testing.T) {
	svc, repo := newTestService(t)
	vendor := repo.createVendor(Vendor{Name: "Consultant", Category: taxcalc.CategoryIndividual, NatureOfService: taxcalc.NatureProfessionalServices})

	p, err := svc.RecordPayable(context.Background(), RecordPayableInput{VendorID: vendor.ID, Amount: decimal.NewFromInt(60000), PaidAt: may2024})
	require.NoError(t, err)
	require.Equal(t, taxcalc.StatusPendingPAN, p.ComplianceStatus)
	require.True(t, p.PANPenaltyApplied)
	require.Equal(t, "12000", p.TDSAmount.String())
	require.Regexp(t, `^PAY-[0-9A-F]{8}$`, p.Reference)
}

func TestRecordPayableRejectsNegativeAmountAndRollsBack(t *testing.T) {
	svc, repo := newTestService(t)
	vendor := repo.createVendor(Vendor{Name: "V", Category: taxcalc.CategoryFirm, NatureOfService: taxcalc.NatureContractor})

	_, err := svc.RecordPayable(context.Background(), RecordPayableInput{VendorID: vendor.ID, Amount: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.ErrorIs(t, err, taxcalc.ErrInvalidInput)
	require.Empty(t, repo.payables)
}

func TestRecordPayableDuplicateReference(t *testing.T) {
	svc, repo := newTestService(t)
	vendor := repo.createVendor(Vendor{Name: "V", Category: taxcalc.CategoryFirm, NatureOfService: taxcalc.NatureContractor})
	ctx := context.Background()

	_, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "INV-1", Amount: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "INV-1", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrDuplicateReference)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestRecordPayableUnknownVendor(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RecordPayable(context.Background(), RecordPayableInput{VendorID: 99, Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrVendorNotFound)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecordPayableConcurrentPaymentsSerialise(t *testing.T) {
	svc, repo := newTestService(t)
	vendor := repo.createVendor(Vendor{Name: "V", Category: taxcalc.CategoryCompany, NatureOfService: taxcalc.NatureTechnicalServices, PAN: "ABCDE1234F"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayable(context.Background(), RecordPayableInput{VendorID: vendor.ID, Amount: decimal.NewFromInt(10000), PaidAt: may2024})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	exceeded := 0
	seen := map[string]bool{}
	for _, p := range repo.payables {
		seen[p.CumulativeBefore.String()] = true
		if p.ThresholdExceeded {
			exceeded++
		}
	}
	require.Len(t, seen, 10)
	// cumulative before 50000..90000 pushes the aggregate over 50000
	require.Equal(t, 5, exceeded)
}

func TestPreviewTDSDoesNotPersist(t *testing.T) {
	svc, repo := newTestService(t)
	vendor := repo.createVendor(Vendor{Name: "V", Category: taxcalc.CategoryCompany, NatureOfService: taxcalc.NatureContractor, PAN: "ABCDE1234F"})

	preview, err := svc.PreviewTDS(context.Background(), vendor.ID, decimal.NewFromInt(50000), time.Time{})
	require.NoError(t, err)
	require.Equal(t, "2024-25", preview.FiscalYear)
	require.Equal(t, "1000", preview.Result.TDSAmount.String())
	require.Equal(t, "49000", preview.Result.NetPayable.String())
	require.Empty(t, repo.payables)
}

func TestSectionSummaryAndWarmCumulative(t *testing.T) {
	svc, repo := newTestService(t)
	cache, mr := newTestCache(t)
	svc.cache = cache
	ctx := context.Background()

	contractor := repo.createVendor(Vendor{Name: "C", Category: taxcalc.CategoryCompany, NatureOfService: taxcalc.NatureContractor, PAN: "ABCDE1234F"})
	consultant := repo.createVendor(Vendor{Name: "P", Category: taxcalc.CategoryIndividual, NatureOfService: taxcalc.NatureProfessionalServices})
	_, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: contractor.ID, Amount: decimal.NewFromInt(50000), PaidAt: may2024})
	require.NoError(t, err)
	_, err = svc.RecordPayable(ctx, RecordPayableInput{VendorID: consultant.ID, Amount: decimal.NewFromInt(60000), PaidAt: may2024})
	require.NoError(t, err)

	fy, rows, err := svc.SectionSummary(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "2024-25", fy)
	require.Len(t, rows, 2)
	require.Equal(t, taxcalc.Section194C, rows[0].Section)
	require.Equal(t, "1000", rows[0].TDS.String())
	require.Equal(t, taxcalc.Section194J, rows[1].Section)
	require.Equal(t, 1, rows[1].PendingPAN)

	n, err := svc.WarmCumulative(ctx, "2024-25")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	stored, err := mr.Get("payables:cumulative:2024-25:" + "2")
	require.NoError(t, err)
	require.Equal(t, "60000", stored)

	_, _, err = svc.SectionSummary(ctx, "24-25")
	require.ErrorIs(t, err, ErrInvalidFiscalYear)
}

func TestPaymentAmountsRejectSubPaisePrecision(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	vendor := repo.createVendor(Vendor{Name: "Trainer", Category: taxcalc.CategoryIndividual, NatureOfService: taxcalc.NatureContractor, PAN: "ABCDE1234F"})

	// 30000.004 would cross the single-payment limit yet be stored as 30000.00.
	_, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R1", Amount: decimal.RequireFromString("30000.004"), PaidAt: may2024})
	require.ErrorIs(t, err, shared.ErrAmountPrecision)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.payables)

	_, err = svc.PreviewTDS(ctx, vendor.ID, decimal.RequireFromString("30000.004"), may2024)
	require.ErrorIs(t, err, shared.ErrAmountPrecision)

	p, err := svc.RecordPayable(ctx, RecordPayableInput{VendorID: vendor.ID, Reference: "R2", Amount: decimal.RequireFromString("30000.010"), PaidAt: may2024})
	require.NoError(t, err)
	require.True(t, p.ThresholdExceeded)
	require.Equal(t, "300", p.TDSAmount.String())
}
