package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	docgenMocks "supplydocs/internal/docgen/mocks"
	"supplydocs/internal/metrics"
	"supplydocs/internal/model"
	"supplydocs/internal/repository"
	repoMocks "supplydocs/internal/repository/mocks"
	"supplydocs/internal/storage"
	storeMocks "supplydocs/internal/storage/mocks"
	"supplydocs/internal/templates"
	tmplMocks "supplydocs/internal/templates/mocks"
)

type processorMocks struct {
	repo     *repoMocks.MockRequestRepository
	tmpl     *tmplMocks.MockStore
	store    *storeMocks.MockStorage
	renderer *docgenMocks.MockRenderer
}

func newTestProcessor(t *testing.T, opts Options) (*Processor, *processorMocks) {
	t.Helper()

	m := &processorMocks{
		repo:     new(repoMocks.MockRequestRepository),
		tmpl:     new(tmplMocks.MockStore),
		store:    new(storeMocks.MockStorage),
		renderer: new(docgenMocks.MockRenderer),
	}

	wm, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	if opts.SupplyTemplate == "" {
		opts.SupplyTemplate = "templates/supply-document.docx"
	}
	if opts.ClaimsTemplate == "" {
		opts.ClaimsTemplate = "templates/claims-document.docx"
	}

	return NewProcessor(m.repo, m.tmpl, m.store, m.renderer, log, wm, opts), m
}

func supplyPending(id int) model.PendingDocument {
	return model.PendingDocument{
		Kind: model.KindSupply,
		Supply: &model.SupplyDocument{
			RequestID:    id,
			OwnerName:    "John Doe",
			ApproverName: "Jane Smith",
			Items:        []string{"Item 1", "Item 2"},
		},
	}
}

func claimsPending(id int) model.PendingDocument {
	return model.PendingDocument{
		Kind: model.KindClaims,
		Claims: &model.ClaimsDocument{
			SupplyDocument: model.SupplyDocument{
				RequestID:    id,
				OwnerName:    "John Doe",
				ApproverName: "Jane Smith",
				Items:        []string{"Item 1", "Item 2"},
			},
			CourierName: "Charlie",
			ClaimsText:  "Defective items received.",
		},
	}
}

func TestRunCycle_GeneratesAndAdvancesBothKinds(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	supply := supplyPending(42)
	claims := claimsPending(43)

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return([]model.PendingDocument{supply, claims}, nil)

	m.tmpl.On("Fetch", mock.Anything, "templates/supply-document.docx").Return([]byte("supply-tmpl"), nil)
	m.tmpl.On("Fetch", mock.Anything, "templates/claims-document.docx").Return([]byte("claims-tmpl"), nil)

	m.renderer.On("RenderSupplyDocument", *supply.Supply, []byte("supply-tmpl")).Return([]byte("supply-doc"), nil)
	m.renderer.On("RenderClaimsDocument", *claims.Claims, []byte("claims-tmpl")).Return([]byte("claims-doc"), nil)

	m.store.On("Put", mock.Anything, "SupplyDocument_42.docx", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "SupplyDocument_42.docx"}, nil)
	m.store.On("Put", mock.Anything, "ClaimsDocument_43.docx", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Key: "ClaimsDocument_43.docx"}, nil)
	m.store.On("Exists", mock.Anything, "SupplyDocument_42.docx").Return(true, nil)
	m.store.On("Exists", mock.Anything, "ClaimsDocument_43.docx").Return(true, nil)

	m.repo.On("UpdateStatus", mock.Anything, 42, model.StatusDetailsDocumentGenerated).Return(true, nil)
	m.repo.On("UpdateStatus", mock.Anything, 43, model.StatusClaimsDocumentGenerated).Return(true, nil)

	require.NoError(t, p.RunCycle(ctx))

	m.repo.AssertExpectations(t)
	m.tmpl.AssertExpectations(t)
	m.store.AssertExpectations(t)
	m.renderer.AssertExpectations(t)

	stats, ok := p.LastCycle()
	require.True(t, ok)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Generated)
	assert.Equal(t, 0, stats.Failed)
}

func TestRunCycle_FailureIsIsolatedPerRequest(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	broken := supplyPending(1)
	healthy := supplyPending(2)
	other := claimsPending(3)

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return([]model.PendingDocument{broken, healthy, other}, nil)

	// Request 1's template fetch fails; siblings must still complete.
	m.tmpl.On("Fetch", mock.Anything, "templates/supply-document.docx").
		Return(nil, templates.ErrNotFound).Once()
	m.tmpl.On("Fetch", mock.Anything, "templates/supply-document.docx").
		Return([]byte("supply-tmpl"), nil).Once()
	m.tmpl.On("Fetch", mock.Anything, "templates/claims-document.docx").
		Return([]byte("claims-tmpl"), nil)

	m.renderer.On("RenderSupplyDocument", mock.Anything, []byte("supply-tmpl")).Return([]byte("doc"), nil)
	m.renderer.On("RenderClaimsDocument", mock.Anything, []byte("claims-tmpl")).Return([]byte("doc"), nil)

	m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, nil)
	m.store.On("Exists", mock.Anything, mock.Anything).Return(true, nil)

	m.repo.On("UpdateStatus", mock.Anything, 2, model.StatusDetailsDocumentGenerated).Return(true, nil)
	m.repo.On("UpdateStatus", mock.Anything, 3, model.StatusClaimsDocumentGenerated).Return(true, nil)

	// The template order is nondeterministic across goroutines, so keep the
	// fan-out serial for this test.
	p.opts.MaxConcurrent = 1

	require.NoError(t, p.RunCycle(ctx))

	m.repo.AssertCalled(t, "UpdateStatus", mock.Anything, 2, model.StatusDetailsDocumentGenerated)
	m.repo.AssertCalled(t, "UpdateStatus", mock.Anything, 3, model.StatusClaimsDocumentGenerated)
	m.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, 1, mock.Anything)

	stats, _ := p.LastCycle()
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 2, stats.Generated)
	assert.Equal(t, 1, stats.Failed)
}

func TestRunCycle_StatusNotAdvancedWithoutConfirmedArtifact(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	doc := supplyPending(42)

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return([]model.PendingDocument{doc}, nil)
	m.tmpl.On("Fetch", mock.Anything, mock.Anything).Return([]byte("tmpl"), nil)
	m.renderer.On("RenderSupplyDocument", mock.Anything, mock.Anything).Return([]byte("doc"), nil)
	m.store.On("Put", mock.Anything, "SupplyDocument_42.docx", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, nil)
	// Simulated store inconsistency: upload succeeded but the confirmation
	// read does not see the artifact.
	m.store.On("Exists", mock.Anything, "SupplyDocument_42.docx").Return(false, nil)

	require.NoError(t, p.RunCycle(ctx))

	m.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)

	stats, _ := p.LastCycle()
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Generated)
}

func TestRunCycle_ZeroPendingRequests(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	m.repo.On("FetchPendingDocuments", mock.Anything).Return([]model.PendingDocument{}, nil)

	require.NoError(t, p.RunCycle(ctx))

	m.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	m.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)

	stats, ok := p.LastCycle()
	require.True(t, ok)
	assert.Equal(t, 0, stats.Fetched)
	assert.Equal(t, 0, stats.Generated)
	assert.Equal(t, 0, stats.Failed)
}

func TestRunCycle_FetchFailureEndsCycleEarly(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return(nil, repository.ErrRepository)

	err := p.RunCycle(ctx)
	assert.ErrorIs(t, err, repository.ErrRepository)

	stats, ok := p.LastCycle()
	require.True(t, ok)
	assert.NotEmpty(t, stats.Error)
}

func TestRunCycle_ZeroRowStatusUpdateIsNonFatal(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	doc := supplyPending(42)

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return([]model.PendingDocument{doc}, nil)
	m.tmpl.On("Fetch", mock.Anything, mock.Anything).Return([]byte("tmpl"), nil)
	m.renderer.On("RenderSupplyDocument", mock.Anything, mock.Anything).Return([]byte("doc"), nil)
	m.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, nil)
	m.store.On("Exists", mock.Anything, mock.Anything).Return(true, nil)
	m.repo.On("UpdateStatus", mock.Anything, 42, model.StatusDetailsDocumentGenerated).Return(false, nil)

	require.NoError(t, p.RunCycle(ctx))

	stats, _ := p.LastCycle()
	assert.Equal(t, 1, stats.Generated)
	assert.Equal(t, 0, stats.Failed)
}

func TestRunCycle_RerunRegeneratesSameArtifact(t *testing.T) {
	ctx := context.Background()
	p, m := newTestProcessor(t, Options{})

	doc := supplyPending(42)

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return([]model.PendingDocument{doc}, nil)
	m.tmpl.On("Fetch", mock.Anything, mock.Anything).Return([]byte("tmpl"), nil)
	m.renderer.On("RenderSupplyDocument", *doc.Supply, []byte("tmpl")).Return([]byte("doc"), nil)
	m.store.On("Put", mock.Anything, "SupplyDocument_42.docx", mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, nil)
	m.store.On("Exists", mock.Anything, "SupplyDocument_42.docx").Return(true, nil)
	// First run advances the status; on the second the row no longer
	// matches the blind update, which must stay a safe no-op.
	m.repo.On("UpdateStatus", mock.Anything, 42, model.StatusDetailsDocumentGenerated).Return(true, nil).Once()
	m.repo.On("UpdateStatus", mock.Anything, 42, model.StatusDetailsDocumentGenerated).Return(false, nil).Once()

	require.NoError(t, p.RunCycle(ctx))
	require.NoError(t, p.RunCycle(ctx))

	m.store.AssertNumberOfCalls(t, "Put", 2)
	m.repo.AssertNumberOfCalls(t, "UpdateStatus", 2)
}

func TestRun_RunOnceReturnsFetchError(t *testing.T) {
	p, m := newTestProcessor(t, Options{RunOnce: true})

	m.repo.On("FetchPendingDocuments", mock.Anything).
		Return(nil, errors.New("db unreachable"))

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db unreachable")
}

func TestRun_RunOnceCompletesAfterSingleCycle(t *testing.T) {
	p, m := newTestProcessor(t, Options{RunOnce: true})

	m.repo.On("FetchPendingDocuments", mock.Anything).Return([]model.PendingDocument{}, nil)

	require.NoError(t, p.Run(context.Background()))
	m.repo.AssertNumberOfCalls(t, "FetchPendingDocuments", 1)
}

func TestRun_DaemonStopsOnContextCancel(t *testing.T) {
	p, m := newTestProcessor(t, Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	m.repo.On("FetchPendingDocuments", mock.Anything).
		Run(func(args mock.Arguments) {
			calls++
			if calls >= 2 {
				cancel()
			}
		}).
		Return([]model.PendingDocument{}, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not stop after context cancellation")
	}
	assert.GreaterOrEqual(t, calls, 2)
}

func TestRun_DaemonContinuesAfterFailedCycle(t *testing.T) {
	p, m := newTestProcessor(t, Options{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	m.repo.On("FetchPendingDocuments", mock.Anything).
		Run(func(args mock.Arguments) {
			calls++
			if calls >= 3 {
				cancel()
			}
		}).
		Return(nil, repository.ErrRepository)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("processor did not stop after context cancellation")
	}
	assert.GreaterOrEqual(t, calls, 3)
}
