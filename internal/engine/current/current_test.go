package current

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"billing-backend/internal/billruns"
	"billing-backend/internal/queue"
)

type fakeQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
	err  error
}

func (f *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	_ = ctx
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type fixedGenerator struct {
	bills int
	err   error
}

func (g fixedGenerator) Generate(ctx context.Context, run billruns.BillRun) (int, error) {
	_ = ctx
	_ = run
	return g.bills, g.err
}

var fixedNow = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }

func TestStarterEnqueuesQueuedRun(t *testing.T) {
	repo := billruns.NewMemoryRepo(nil)
	q := &fakeQueue{}
	starter := &Starter{Repo: repo, Queue: q, Now: fixedNow}

	ctx := WithRequestID(context.Background(), "req-1")
	run, err := starter.Start(ctx, "region-1", billruns.BatchAnnual, "billing@example.com", 2026)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if run.Status != billruns.StatusQueued || run.Scheme != billruns.SchemeSROC {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.FromFinancialYearEnding != 2026 || run.CreatedBy != "billing@example.com" {
		t.Fatalf("unexpected run fields: %+v", run)
	}
	if len(q.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(q.msgs))
	}
	msg := q.msgs[0]
	if msg.BillRunID != run.ID || msg.RequestID != "req-1" || msg.Version != queue.MessageVersion {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestStarterMarksRunErrorWhenEnqueueFails(t *testing.T) {
	repo := billruns.NewMemoryRepo(nil)
	sendErr := errors.New("queue down")
	starter := &Starter{Repo: repo, Queue: &fakeQueue{err: sendErr}, Now: fixedNow}

	_, err := starter.Start(context.Background(), "region-1", billruns.BatchSupplementary, "u@example.com", 2025)
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}

	runs, err := repo.List(context.Background(), "region-1", 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != billruns.StatusError {
		t.Fatalf("expected one errored run, got %+v", runs)
	}
}

func TestStarterWithoutQueueProcessesInBackground(t *testing.T) {
	repo := billruns.NewMemoryRepo(nil)
	starter := &Starter{Repo: repo, Processor: &Processor{Repo: repo, Generator: fixedGenerator{bills: 3}}, Now: fixedNow}

	run, err := starter.Start(context.Background(), "region-1", billruns.BatchAnnual, "u@example.com", 2025)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := repo.GetByID(context.Background(), run.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status == billruns.StatusReady {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("run never became ready, status %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStarterRejectsInvalidInput(t *testing.T) {
	starter := &Starter{Repo: billruns.NewMemoryRepo(nil), Queue: &fakeQueue{}}
	if _, err := starter.Start(context.Background(), "", billruns.BatchAnnual, "u", 2025); !errors.Is(err, billruns.ErrInvalidBillRun) {
		t.Fatalf("expected ErrInvalidBillRun, got %v", err)
	}
	if _, err := starter.Start(context.Background(), "r", billruns.BatchAnnual, "u", 0); !errors.Is(err, billruns.ErrInvalidBillRun) {
		t.Fatalf("expected ErrInvalidBillRun for year 0, got %v", err)
	}
}

func TestFromFinancialYearEnding(t *testing.T) {
	cases := []struct {
		batchType billruns.BatchType
		to        int
		want      int
	}{
		{billruns.BatchAnnual, 2025, 2025},
		{billruns.BatchTwoPartTariff, 2024, 2024},
		{billruns.BatchSupplementary, 2030, 2025},
		{billruns.BatchSupplementary, 2025, 2023},
		{billruns.BatchSupplementary, 2021, 2021},
	}
	for _, tc := range cases {
		if got := fromFinancialYearEnding(tc.batchType, tc.to); got != tc.want {
			t.Fatalf("%s %d: expected %d, got %d", tc.batchType, tc.to, tc.want, got)
		}
	}
}

func TestProcessorFinalStatus(t *testing.T) {
	cases := []struct {
		name      string
		batchType billruns.BatchType
		gen       fixedGenerator
		want      billruns.Status
		wantErr   bool
	}{
		{name: "bills", batchType: billruns.BatchAnnual, gen: fixedGenerator{bills: 2}, want: billruns.StatusReady},
		{name: "no bills", batchType: billruns.BatchSupplementary, want: billruns.StatusEmpty},
		{name: "two-part tariff review", batchType: billruns.BatchTwoPartTariff, gen: fixedGenerator{bills: 1}, want: billruns.StatusReview},
		{name: "generator error", batchType: billruns.BatchAnnual, gen: fixedGenerator{err: errors.New("charge calc failed")}, want: billruns.StatusError, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := billruns.NewMemoryRepo(nil)
			repo.Seed(billruns.BillRun{ID: "run-1", RegionID: "r1", BatchType: tc.batchType, Status: billruns.StatusQueued})
			p := &Processor{Repo: repo, Generator: tc.gen}

			err := p.Process(context.Background(), "run-1")
			if (err != nil) != tc.wantErr {
				t.Fatalf("Process error = %v, wantErr %v", err, tc.wantErr)
			}
			got, _ := repo.GetByID(context.Background(), "run-1")
			if got.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Status)
			}
		})
	}
}

func TestProcessorSkipsRunsNoLongerQueued(t *testing.T) {
	repo := billruns.NewMemoryRepo(nil)
	repo.Seed(billruns.BillRun{ID: "run-1", RegionID: "r1", BatchType: billruns.BatchAnnual, Status: billruns.StatusCancel})
	p := &Processor{Repo: repo}

	if err := p.Process(context.Background(), "run-1"); !errors.Is(err, ErrNotQueued) {
		t.Fatalf("expected ErrNotQueued, got %v", err)
	}
	got, _ := repo.GetByID(context.Background(), "run-1")
	if got.Status != billruns.StatusCancel {
		t.Fatalf("cancelled run must stay cancelled, got %s", got.Status)
	}
}
