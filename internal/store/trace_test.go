package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/phdtrack/internal/domain"
)

func writeTrace(t *testing.T, s *Store, id, request string, attempt int) {
	t.Helper()
	ctx := context.Background()
	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertTracePending(ctx, TraceRecord{
			ID:               id,
			OrchestratorName: "analytics_orchestrator",
			RequestID:        request,
			Attempt:          attempt,
			InputHash:        "hash-in",
			StartedAt:        testEpoch,
		})
	})
	if err != nil {
		t.Fatalf("InsertTracePending() failed: %v", err)
	}
}

func TestTrace_FinishWithStepsAndEvidence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTrace(t, s, "tr-1", "req-1", 1)

	steps := []StepRecord{
		{StepNumber: 1, Action: "load_timeline", Status: domain.StatusCompleted, StartedAt: testEpoch, CompletedAt: testEpoch, DurationMS: 0},
		{StepNumber: 2, Action: "aggregate", Status: domain.StatusCompleted, StartedAt: testEpoch, CompletedAt: testEpoch, DurationMS: 3},
	}
	evidence := []EvidenceRecord{
		{ID: "ev-1", TraceID: "tr-1", StepNumber: 2, Seq: 1, Kind: "analytics_aggregate", Source: "aggregate",
			Confidence: 100, Payload: `{"total_stages":1}`, PayloadHash: "h1", CreatedAt: testEpoch},
	}

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.InsertTraceSteps(ctx, "tr-1", steps); err != nil {
			return err
		}
		if err := tx.InsertEvidence(ctx, evidence); err != nil {
			return err
		}
		return tx.FinishTrace(ctx, TraceFinish{
			ID: "tr-1", Status: domain.StatusCompleted, OutputHash: "hash-out",
			CompletedAt: testEpoch, DurationMS: 3,
		})
	})
	if err != nil {
		t.Fatalf("finish trace failed: %v", err)
	}

	tr, err := s.GetTrace(ctx, "tr-1")
	if err != nil {
		t.Fatalf("GetTrace() failed: %v", err)
	}
	if tr.Status != domain.StatusCompleted || tr.OutputHash != "hash-out" {
		t.Errorf("trace = %+v, want COMPLETED with output hash", tr)
	}
	if tr.DurationMS == nil || *tr.DurationMS != 3 {
		t.Errorf("duration_ms = %v, want 3", tr.DurationMS)
	}
	if len(tr.Steps) != 2 || tr.Steps[0].Action != "load_timeline" || tr.Steps[1].StepNumber != 2 {
		t.Errorf("steps = %+v", tr.Steps)
	}
	if len(tr.Evidence) != 1 || tr.Evidence[0].Kind != "analytics_aggregate" {
		t.Errorf("evidence = %+v", tr.Evidence)
	}

	err = s.InTx(ctx, func(tx *Tx) error {
		return tx.FinishTrace(ctx, TraceFinish{ID: "tr-1", Status: domain.StatusFailed, CompletedAt: testEpoch})
	})
	if !errors.Is(err, ErrAlreadyTerminal) {
		t.Errorf("second FinishTrace() error = %v, want ErrAlreadyTerminal", err)
	}
}

func TestTrace_FinishRejectsPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTrace(t, s, "tr-1", "req-1", 1)

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.FinishTrace(ctx, TraceFinish{ID: "tr-1", Status: domain.StatusPending, CompletedAt: testEpoch})
	})
	if err == nil {
		t.Fatal("FinishTrace() accepted a non-terminal status")
	}
}

func TestTrace_EvidenceRequiresStep(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTrace(t, s, "tr-1", "req-1", 1)

	err := s.InTx(ctx, func(tx *Tx) error {
		return tx.InsertEvidence(ctx, []EvidenceRecord{{
			ID: "ev-1", TraceID: "tr-1", StepNumber: 7, Seq: 1, Kind: "access_log",
			Source: "x", Confidence: 100, Payload: "{}", PayloadHash: "h", CreatedAt: testEpoch,
		}})
	})
	if err == nil {
		t.Fatal("evidence for a missing step was accepted")
	}
}

func TestTrace_ListAndByRequest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	writeTrace(t, s, "tr-1", "req-1", 1)
	writeTrace(t, s, "tr-2", "req-1", 2)
	writeTrace(t, s, "tr-3", "req-2", 1)

	byReq, err := s.TracesByRequest(ctx, "analytics_orchestrator", "req-1")
	if err != nil {
		t.Fatalf("TracesByRequest() failed: %v", err)
	}
	if len(byReq) != 2 || byReq[0].Attempt != 1 || byReq[1].Attempt != 2 {
		t.Errorf("TracesByRequest() = %+v, want attempts 1 and 2", byReq)
	}
	if byReq[0].Steps == nil {
		t.Error("TracesByRequest() did not load steps")
	}

	all, err := s.ListTraces(ctx, TraceFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListTraces() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(ListTraces(limit 2)) = %d, want 2", len(all))
	}

	pending, err := s.ListTraces(ctx, TraceFilter{RequestID: "req-2", Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("ListTraces() failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "tr-3" {
		t.Errorf("ListTraces(req-2) = %+v, want tr-3", pending)
	}
}

func TestTrace_GetMissing(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetTrace(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("GetTrace() error = %v, want not found", err)
	}
}
