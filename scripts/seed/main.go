package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/trainops/trainops-erp/internal/app"
	"github.com/trainops/trainops-erp/internal/deals"
	"github.com/trainops/trainops-erp/internal/invoicing"
	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/payables"
	"github.com/trainops/trainops-erp/internal/platform/db"
	"github.com/trainops/trainops-erp/internal/shared"
	"github.com/trainops/trainops-erp/internal/taxcalc"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)
	ctx := context.Background()

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	fmt.Println("→ Applying schema...")
	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	seeded, err := alreadySeeded(ctx, pool)
	if err != nil {
		log.Fatalf("check existing data: %v", err)
	}
	if seeded {
		fmt.Println("✓ Vendors already present, nothing to seed")
		return
	}

	metrics := observability.NewMetrics()
	payablesService := payables.NewService(payables.NewRepository(pool), nil, metrics, logger)
	dealsService := deals.NewService(deals.NewRepository(pool), shared.NewApprovalRecorder(pool, logger), metrics, logger)
	invoicingService := invoicing.NewService(invoicing.NewRepository(pool), dealsService, metrics, logger)

	fmt.Println("→ Seeding vendors and payables...")
	if err := seedPayables(ctx, payablesService); err != nil {
		log.Fatalf("seed payables: %v", err)
	}

	fmt.Println("→ Seeding deals...")
	dealIDs, err := seedDeals(ctx, dealsService)
	if err != nil {
		log.Fatalf("seed deals: %v", err)
	}

	fmt.Println("→ Seeding invoices...")
	if err := seedInvoices(ctx, invoicingService, dealIDs); err != nil {
		log.Fatalf("seed invoices: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func alreadySeeded(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM vendors)`).Scan(&exists)
	return exists, err
}

// =============================================================================
// PAYABLES
// =============================================================================

func seedPayables(ctx context.Context, svc *payables.Service) error {
	vendors := []struct {
		input    payables.CreateVendorInput
		payments []int64
	}{
		{payables.CreateVendorInput{Name: "Anita Rao", Category: "Individual", NatureOfService: "ProfessionalServices", PAN: "ABCPR1234K"}, []int64{20000, 25000, 15000}},
		{payables.CreateVendorInput{Name: "Skyline Labs Pvt Ltd", Category: "Company", NatureOfService: "TechnicalServices", PAN: "AAACS4321L"}, []int64{45000, 30000}},
		{payables.CreateVendorInput{Name: "Metro Cabs", Category: "Firm", NatureOfService: "Contractor"}, []int64{18000, 35000}},
		{payables.CreateVendorInput{Name: "Kiran Venues LLP", Category: "LLP", NatureOfService: "Contractor", PAN: "AAKFK7788M"}, []int64{28000, 29000, 27000, 26000}},
	}

	paidAt := time.Date(2024, time.May, 10, 10, 0, 0, 0, time.UTC)
	for _, v := range vendors {
		vendor, err := svc.CreateVendor(ctx, v.input)
		if err != nil {
			return fmt.Errorf("vendor %s: %w", v.input.Name, err)
		}
		for i, amount := range v.payments {
			_, err := svc.RecordPayable(ctx, payables.RecordPayableInput{
				VendorID:  vendor.ID,
				Reference: fmt.Sprintf("SEED-%d-%02d", vendor.ID, i+1),
				Amount:    decimal.NewFromInt(amount),
				PaidAt:    paidAt.AddDate(0, i, 0),
			})
			if err != nil && !errors.Is(err, payables.ErrDuplicateReference) {
				return fmt.Errorf("payable for %s: %w", v.input.Name, err)
			}
		}
	}
	return nil
}

// =============================================================================
// DEALS
// =============================================================================

func seedDeals(ctx context.Context, svc *deals.Service) ([]int64, error) {
	inputs := []deals.CreateDealInput{
		{
			Title:           "Kubernetes bootcamp, 5 days",
			ClientName:      "Northwind Technologies",
			ExpectedRevenue: decimal.NewFromInt(450000),
			Costs: taxcalc.DealCosts{
				TrainerCost:   decimal.NewFromInt(180000),
				LabCost:       decimal.NewFromInt(40000),
				LogisticsCost: decimal.NewFromInt(15000),
				TravelCost:    decimal.NewFromInt(25000),
			},
		},
		{
			Title:           "Data engineering track",
			ClientName:      "Contoso Finance",
			ExpectedRevenue: decimal.NewFromInt(300000),
			Costs: taxcalc.DealCosts{
				TrainerCost:       decimal.NewFromInt(200000),
				LabCost:           decimal.NewFromInt(35000),
				ContentCost:       decimal.NewFromInt(10000),
				ContingencyBuffer: decimal.NewFromInt(5000),
			},
		},
		{
			Title:           "Leadership offsite",
			ClientName:      "Fabrikam Retail",
			ExpectedRevenue: decimal.NewFromInt(200000),
			Costs: taxcalc.DealCosts{
				TrainerCost:   decimal.NewFromInt(120000),
				LogisticsCost: decimal.NewFromInt(40000),
				TravelCost:    decimal.NewFromInt(30000),
				MarketingCost: decimal.NewFromInt(5000),
			},
		},
	}

	ids := make([]int64, 0, len(inputs))
	for _, in := range inputs {
		d, err := svc.CreateDeal(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("deal %q: %w", in.Title, err)
		}
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// =============================================================================
// INVOICES
// =============================================================================

func seedInvoices(ctx context.Context, svc *invoicing.Service, dealIDs []int64) error {
	gstTypes := []string{string(taxcalc.GSTCentralState), string(taxcalc.GSTIntegrated), string(taxcalc.GSTCentralState)}
	for i, id := range dealIDs {
		dealID := id
		if _, err := svc.CreateInvoice(ctx, invoicing.CreateInvoiceInput{
			DealID:  &dealID,
			GSTType: gstTypes[i%len(gstTypes)],
		}); err != nil {
			return fmt.Errorf("invoice for deal %d: %w", id, err)
		}
	}

	exempt := decimal.Zero
	_, err := svc.CreateInvoice(ctx, invoicing.CreateInvoiceInput{
		CustomerName: "State Skills Mission",
		BaseAmount:   decimal.NewFromInt(80000),
		GSTType:      string(taxcalc.GSTNone),
		GSTPercent:   &exempt,
	})
	return err
}
