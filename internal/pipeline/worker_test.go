package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"mediascore/internal/indicator"
	"mediascore/internal/models"
)

// fakeStore is an in-memory ReportStore with the same claim semantics as the
// SQL implementation: claiming is atomic and a report is claimed at most once.
type fakeStore struct {
	mu       sync.Mutex
	order    []string
	reports  map[string]*models.Report
	items    map[string][]models.ProcessedMediaItem
	raw      map[string]json.RawMessage
	existing []StoredFingerprint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reports: make(map[string]*models.Report),
		items:   make(map[string][]models.ProcessedMediaItem),
		raw:     make(map[string]json.RawMessage),
	}
}

func (s *fakeStore) add(report *models.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, report.ID)
	s.reports[report.ID] = report
}

func (s *fakeStore) ClaimQueued(ctx context.Context, limit int, staleAfter time.Duration) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []models.Report
	for _, id := range s.order {
		if len(claimed) >= limit {
			break
		}
		r := s.reports[id]
		if r.Status != models.StatusQueued {
			continue
		}
		r.Status = models.StatusProcessing
		now := time.Now()
		r.ProcessingStartedAt = &now
		claimed = append(claimed, *r)
	}
	return claimed, nil
}

func (s *fakeStore) ClaimByID(ctx context.Context, id string, staleAfter time.Duration) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok || r.Status != models.StatusQueued {
		return nil, nil
	}
	r.Status = models.StatusProcessing
	now := time.Now()
	r.ProcessingStartedAt = &now
	copied := *r
	return &copied, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeStore) SaveRawData(ctx context.Context, id string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[id] = raw
	return nil
}

func (s *fakeStore) ReplaceItems(ctx context.Context, reportID string, items []models.ProcessedMediaItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[reportID] = items
	return nil
}

func (s *fakeStore) ItemsByReport(ctx context.Context, reportID string) ([]models.ProcessedMediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[reportID], nil
}

func (s *fakeStore) FingerprintsExcluding(ctx context.Context, reportID string) ([]StoredFingerprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StoredFingerprint
	for _, fp := range s.existing {
		if fp.ReportID != reportID {
			out = append(out, fp)
		}
	}
	for id, items := range s.items {
		if id == reportID {
			continue
		}
		for _, item := range items {
			out = append(out, StoredFingerprint{
				ReportID:      id,
				NormalizedURL: item.NormalizedURL,
				ContentHash:   item.ContentHash,
			})
		}
	}
	return out, nil
}

func (s *fakeStore) MarkPendingApproval(ctx context.Context, id string, processed json.RawMessage, score float64, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	r.Status = models.StatusPendingApproval
	r.ProcessedData = processed
	r.CalculatedScore = &score
	r.VideoHashes = hashes
	return nil
}

func (s *fakeStore) MarkSystemRejected(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	r.Status = models.StatusSystemRejected
	r.RejectionReason = &reason
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	r.Status = models.StatusFailed
	r.RejectionReason = &reason
	return nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	r.Status = models.StatusCompleted
	r.CalculatedScore = &score
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, notification models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, s := range n.sent {
		out[i] = s.Type
	}
	return out
}

type fakeKPISource struct {
	kpis []models.KPIWithRanges
}

func (k *fakeKPISource) ActiveKPIs(ctx context.Context, indicatorType string) ([]models.KPIWithRanges, error) {
	return k.kpis, nil
}

type fakeFiles struct {
	files map[string][]byte
}

func (f *fakeFiles) Read(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	return data, nil
}

func newTestWorker(store *fakeStore, notifier *fakeNotifier, kpis []models.KPIWithRanges, files map[string][]byte) *Worker {
	return NewWorker(
		store,
		notifier,
		&fakeKPISource{kpis: kpis},
		&fakeFiles{files: files},
		indicator.NewRegistry(),
		WorkerConfig{BatchSize: 5, LinkTimeout: 3 * time.Second, MaxFetchBytes: 1 << 20},
	)
}

func queuedReport(id, storagePath string) *models.Report {
	return &models.Report{
		ID:            id,
		UserID:        7,
		FileName:      "laporan.csv",
		StoragePath:   storagePath,
		IndicatorType: "skoring-publikasi-media",
		Status:        models.StatusQueued,
	}
}

func TestWorkerEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<html><head><title>Artikel %s</title></head><body>isi %s</body></html>", r.URL.Path, r.URL.Path)
	}))
	defer server.Close()

	csv := strings.Join([]string{
		"Media Online",
		server.URL + "/a",
		server.URL + "/b",
		"http://unreachable.invalid/x",
		"",
	}, "\n")

	store := newFakeStore()
	store.add(queuedReport("r1", "uploads/7/laporan.csv"))
	notifier := &fakeNotifier{}
	kpis := []models.KPIWithRanges{testKPI("media_online", ptr(models.MediaOnlineNews), 2, 100)}

	worker := newTestWorker(store, notifier, kpis, map[string][]byte{
		"uploads/7/laporan.csv": []byte(csv),
	})

	n, err := worker.ProcessQueued(context.Background())
	if err != nil {
		t.Fatalf("ProcessQueued failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 processed report, got %d", n)
	}

	report, _ := store.GetByID(context.Background(), "r1")
	if report.Status != models.StatusPendingApproval {
		t.Fatalf("Expected pending_approval, got %s (reason: %v)", report.Status, report.RejectionReason)
	}

	items := store.items["r1"]
	if len(items) != 3 {
		t.Fatalf("Expected 3 processed items, got %d", len(items))
	}

	valid := 0
	for _, item := range items {
		if item.IsValid {
			valid++
			if item.ContentHash == "" {
				t.Error("Valid item should carry a content hash")
			}
		} else {
			if item.ValidationError == nil || *item.ValidationError == "" {
				t.Error("Invalid item should record its failure cause")
			}
			if item.ContentHash != "" {
				t.Error("Unreachable item should have no content hash")
			}
		}
	}
	if valid != 2 {
		t.Errorf("Expected 2 valid items, got %d", valid)
	}

	// 2 valid items against target 2 = 100% -> band score 5, weight 100
	if report.CalculatedScore == nil || *report.CalculatedScore != 5 {
		t.Errorf("Expected score 5, got %v", report.CalculatedScore)
	}
	if len(report.VideoHashes) != 2 {
		t.Errorf("Expected 2 stored content hashes, got %d", len(report.VideoHashes))
	}

	types := notifier.types()
	if len(types) != 2 || types[0] != models.NotifyProcessingStarted || types[1] != models.NotifyAwaitingApproval {
		t.Errorf("Unexpected notification sequence: %v", types)
	}

	if raw, ok := store.raw["r1"]; !ok || len(raw) == 0 {
		t.Error("Raw extracted rows should be persisted before transformation")
	}
}

func TestWorkerCrossReportDuplicateSystemRejects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "shared article body")
	}))
	defer server.Close()

	csv := "Media Online\n" + server.URL + "/story"

	store := newFakeStore()
	store.add(queuedReport("r2", "uploads/7/laporan.csv"))
	store.existing = []StoredFingerprint{
		{ReportID: "r-prev", NormalizedURL: NormalizeURL(server.URL + "/story"), ContentHash: "other"},
	}
	notifier := &fakeNotifier{}
	kpis := []models.KPIWithRanges{testKPI("media_online", ptr(models.MediaOnlineNews), 1, 100)}

	worker := newTestWorker(store, notifier, kpis, map[string][]byte{
		"uploads/7/laporan.csv": []byte(csv),
	})

	if _, err := worker.ProcessQueued(context.Background()); err != nil {
		t.Fatalf("ProcessQueued failed: %v", err)
	}

	report, _ := store.GetByID(context.Background(), "r2")
	if report.Status != models.StatusSystemRejected {
		t.Fatalf("Expected system_rejected, got %s", report.Status)
	}
	if report.RejectionReason == nil || !strings.Contains(*report.RejectionReason, "r-prev") {
		t.Errorf("Rejection reason should name the offending report, got %v", report.RejectionReason)
	}

	// Item flags are persisted for audit even though the report is rejected
	if len(store.items["r2"]) != 1 || !store.items["r2"][0].IsDuplicate {
		t.Error("Duplicate item should be stored and flagged")
	}

	types := notifier.types()
	if len(types) != 2 || types[1] != models.NotifySystemRejected {
		t.Errorf("Expected system_rejected notification, got %v", types)
	}
}

func TestWorkerIntraReportDuplicateStillScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "body %s", r.URL.Path)
	}))
	defer server.Close()

	// Same link twice in one report: flagged and excluded from scoring, but
	// the report itself is not rejected
	csv := strings.Join([]string{
		"Media Online",
		server.URL + "/a",
		server.URL + "/a",
		server.URL + "/b",
	}, "\n")

	store := newFakeStore()
	store.add(queuedReport("r3", "uploads/7/laporan.csv"))
	notifier := &fakeNotifier{}
	kpis := []models.KPIWithRanges{testKPI("media_online", ptr(models.MediaOnlineNews), 2, 100)}

	worker := newTestWorker(store, notifier, kpis, map[string][]byte{
		"uploads/7/laporan.csv": []byte(csv),
	})

	if _, err := worker.ProcessQueued(context.Background()); err != nil {
		t.Fatalf("ProcessQueued failed: %v", err)
	}

	report, _ := store.GetByID(context.Background(), "r3")
	if report.Status != models.StatusPendingApproval {
		t.Fatalf("Intra-report duplicate should not reject the report, got %s", report.Status)
	}

	duplicates := 0
	for _, item := range store.items["r3"] {
		if item.IsDuplicate {
			duplicates++
		}
	}
	if duplicates != 1 {
		t.Errorf("Expected exactly the repeated link flagged, got %d flags", duplicates)
	}

	// 2 usable of target 2 = 100% -> score 5
	if report.CalculatedScore == nil || *report.CalculatedScore != 5 {
		t.Errorf("Duplicate should be excluded from scoring, got score %v", report.CalculatedScore)
	}
}

func TestWorkerSchemaMismatchFails(t *testing.T) {
	csv := "Nama,Tanggal\nBudi,2026-01-01"

	store := newFakeStore()
	store.add(queuedReport("r4", "uploads/7/laporan.csv"))
	notifier := &fakeNotifier{}

	worker := newTestWorker(store, notifier, nil, map[string][]byte{
		"uploads/7/laporan.csv": []byte(csv),
	})

	if _, err := worker.ProcessQueued(context.Background()); err != nil {
		t.Fatalf("ProcessQueued failed: %v", err)
	}

	report, _ := store.GetByID(context.Background(), "r4")
	if report.Status != models.StatusFailed {
		t.Fatalf("Expected failed, got %s", report.Status)
	}
	if report.RejectionReason == nil || !strings.Contains(*report.RejectionReason, "skoring-publikasi-media") {
		t.Errorf("Failure reason should describe the schema mismatch, got %v", report.RejectionReason)
	}

	types := notifier.types()
	if len(types) != 2 || types[1] != models.NotifyFailed {
		t.Errorf("Expected failed notification, got %v", types)
	}
}

func TestWorkerConcurrentClaimSafety(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "body %s", r.URL.Path)
	}))
	defer server.Close()

	store := newFakeStore()
	files := make(map[string][]byte)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("c%d", i)
		path := fmt.Sprintf("uploads/7/%s.csv", id)
		store.add(queuedReport(id, path))
		files[path] = []byte("Media Online\n" + server.URL + "/" + id)
	}

	kpis := []models.KPIWithRanges{testKPI("media_online", ptr(models.MediaOnlineNews), 1, 100)}

	workerA := newTestWorker(store, &fakeNotifier{}, kpis, files)
	workerB := newTestWorker(store, &fakeNotifier{}, kpis, files)

	var wg sync.WaitGroup
	totals := make([]int, 2)
	for i, w := range []*Worker{workerA, workerB} {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			for {
				n, err := w.ProcessQueued(context.Background())
				if err != nil {
					t.Errorf("ProcessQueued failed: %v", err)
					return
				}
				if n == 0 {
					return
				}
				totals[i] += n
			}
		}(i, w)
	}
	wg.Wait()

	if totals[0]+totals[1] != 8 {
		t.Errorf("Each report must be processed exactly once, got %d + %d", totals[0], totals[1])
	}
}

func TestWorkerProcessByIDNotClaimable(t *testing.T) {
	store := newFakeStore()
	report := queuedReport("r5", "uploads/7/laporan.csv")
	report.Status = models.StatusCompleted
	store.add(report)

	worker := newTestWorker(store, &fakeNotifier{}, nil, nil)

	if err := worker.ProcessByID(context.Background(), "r5"); err == nil {
		t.Error("Processing a completed report should fail")
	}
}

func TestWorkerFinalizeApproved(t *testing.T) {
	store := newFakeStore()

	payload := ProcessedPayload{Family: models.FamilyMedia}
	payloadJSON, _ := json.Marshal(payload)

	report := queuedReport("r6", "uploads/7/laporan.csv")
	report.Status = models.StatusApproved
	report.ProcessedData = payloadJSON
	store.add(report)
	store.items["r6"] = []models.ProcessedMediaItem{
		{MediaType: models.MediaOnlineNews, IsValid: true},
		{MediaType: models.MediaOnlineNews, IsValid: true},
	}

	notifier := &fakeNotifier{}
	kpis := []models.KPIWithRanges{testKPI("media_online", ptr(models.MediaOnlineNews), 2, 100)}
	worker := newTestWorker(store, notifier, kpis, nil)

	if err := worker.FinalizeApproved(context.Background(), "r6"); err != nil {
		t.Fatalf("FinalizeApproved failed: %v", err)
	}

	final, _ := store.GetByID(context.Background(), "r6")
	if final.Status != models.StatusCompleted {
		t.Fatalf("Expected completed, got %s", final.Status)
	}
	if final.CalculatedScore == nil || *final.CalculatedScore != 5 {
		t.Errorf("Expected final score 5, got %v", final.CalculatedScore)
	}

	types := notifier.types()
	if len(types) != 1 || types[0] != models.NotifyCompleted {
		t.Errorf("Expected completed notification, got %v", types)
	}
}

func TestWorkerFinalizeRequiresApprovedStatus(t *testing.T) {
	store := newFakeStore()
	report := queuedReport("r7", "uploads/7/laporan.csv")
	report.Status = models.StatusPendingApproval
	store.add(report)

	worker := newTestWorker(store, &fakeNotifier{}, nil, nil)

	err := worker.FinalizeApproved(context.Background(), "r7")
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("Expected *InvalidStateError, got %v", err)
	}
	if stateErr.Status != models.StatusPendingApproval {
		t.Errorf("Error should carry the current status, got %s", stateErr.Status)
	}
}
