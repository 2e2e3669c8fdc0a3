package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/labelqr/internal/config"
)

type recordingObserver struct {
	mu        sync.Mutex
	records   int
	failures  int
	batches   []Source
	batchErrs []error
}

func (o *recordingObserver) ObserveRecord(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records++
	if err != nil {
		o.failures++
	}
}

func (o *recordingObserver) ObserveBatch(src Source, _ *Sheet, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, src)
}

func (o *recordingObserver) ObserveBatchError(_ Source, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batchErrs = append(o.batchErrs, err)
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *recordingObserver) {
	t.Helper()
	svc := NewService(stubEncoder("FAIL", ""), cfg)
	obs := &recordingObserver{}
	svc.SetObserver(obs)
	return svc, obs
}

func TestGenerateText(t *testing.T) {
	svc, obs := newTestService(t, nil)
	set := DefaultSettings()

	sheet, err := svc.GenerateText(context.Background(), "X1;Name1;5\n X1 ;Name2;9\nFAIL;bad;1\n;orphan;2", set)
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}

	if got := sheet.Processed(); got != 2 {
		t.Errorf("Processed() = %d, want 2", got)
	}
	if got := sheet.Failed(); got != 1 {
		t.Errorf("Failed() = %d, want 1", got)
	}
	if rec := sheet.Items[0].Record; rec != (Record{"X1", "Name1", "5"}) {
		t.Errorf("first record = %+v, want X1/Name1/5", rec)
	}
	if sheet.Layout != LayoutCards || sheet.Options != set.Render {
		t.Errorf("sheet layout/options = %q/%+v", sheet.Layout, sheet.Options)
	}
	if obs.records != 2 || obs.failures != 1 || len(obs.batches) != 1 || obs.batches[0] != SourceText {
		t.Errorf("observer = %+v", obs)
	}
}

func TestGenerateText_Empty(t *testing.T) {
	svc, obs := newTestService(t, nil)

	for _, text := range []string{"", "   \n\t"} {
		sheet, err := svc.GenerateText(context.Background(), text, DefaultSettings())
		if !errors.Is(err, ErrInputEmpty) {
			t.Errorf("GenerateText(%q) error = %v, want ErrInputEmpty", text, err)
		}
		if !sheet.Empty() {
			t.Errorf("GenerateText(%q) sheet not empty", text)
		}
	}
	if len(obs.batchErrs) != 2 {
		t.Errorf("batch errors observed = %d, want 2", len(obs.batchErrs))
	}
}

func TestGenerateText_OnlyBlankIdentifiers(t *testing.T) {
	svc, _ := newTestService(t, nil)

	sheet, err := svc.GenerateText(context.Background(), ";a;1\n;b;2", DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if !sheet.Empty() {
		t.Errorf("sheet has %d items, want empty state", sheet.Processed())
	}
}

func TestGenerateText_NoDedupKeepsDuplicates(t *testing.T) {
	svc, _ := newTestService(t, nil)
	set := DefaultSettings()
	set.Deduplicate = false
	set.Layout = LayoutTable

	sheet, err := svc.GenerateText(context.Background(), "A;x;1\nA;y;2", set)
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if sheet.Processed() != 2 || sheet.Layout != LayoutTable {
		t.Errorf("Processed() = %d layout = %q, want 2 table", sheet.Processed(), sheet.Layout)
	}
}

func TestGenerateCSV(t *testing.T) {
	svc, obs := newTestService(t, nil)

	up := Upload{
		Reader:      strings.NewReader("Product Code;Description;Qty\nA1;Bolt;3\nA1;Dup;4\nB2;Nut;5\n"),
		FileName:    "labels.csv",
		ContentType: "application/octet-stream",
	}
	sheet, err := svc.GenerateCSV(context.Background(), up, DefaultSettings())
	if err != nil {
		t.Fatalf("GenerateCSV() error = %v", err)
	}

	if got := sheet.Processed(); got != 2 {
		t.Errorf("Processed() = %d, want 2", got)
	}
	wantText := "A1;Bolt;3\nA1;Dup;4\nB2;Nut;5"
	if sheet.SourceText != wantText {
		t.Errorf("SourceText = %q, want %q", sheet.SourceText, wantText)
	}
	if len(obs.batches) != 1 || obs.batches[0] != SourceCSV {
		t.Errorf("batches = %v, want [csv]", obs.batches)
	}
}

func TestGenerateCSV_Rejections(t *testing.T) {
	svc, obs := newTestService(t, nil)

	tests := []struct {
		name    string
		up      Upload
		wantErr error
	}{
		{"no reader", Upload{FileName: "a.csv"}, ErrNoFile},
		{"wrong type", Upload{Reader: strings.NewReader("a,b"), FileName: "a.xlsx", ContentType: "application/vnd.ms-excel"}, ErrUnsupportedFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet, err := svc.GenerateCSV(context.Background(), tt.up, DefaultSettings())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("GenerateCSV() error = %v, want %v", err, tt.wantErr)
			}
			if sheet != nil {
				t.Error("rejected upload should not produce a sheet")
			}
		})
	}

	_, err := svc.GenerateCSV(context.Background(), Upload{
		Reader:   strings.NewReader("code,name\n\"broken,x\n"),
		FileName: "bad.csv",
	}, DefaultSettings())
	var ie *IngestionError
	if !errors.As(err, &ie) {
		t.Errorf("malformed CSV error = %v, want *IngestionError", err)
	}
	if len(obs.batchErrs) != 3 {
		t.Errorf("batch errors observed = %d, want 3", len(obs.batchErrs))
	}
}

func TestGenerateCSV_Busy(t *testing.T) {
	cfg := &config.Config{
		Upload: config.UploadConfig{MaxFileSize: 1024, MaxConcurrent: 1, MaxWaitTime: 30 * time.Millisecond},
		Render: config.RenderConfig{DefaultSize: 96, DefaultLevel: "M", DefaultLayout: "cards", DefaultDedup: true, MaxSize: 1024},
	}
	svc, _ := newTestService(t, cfg)

	if err := svc.limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer svc.limiter.Release()

	_, err := svc.GenerateCSV(context.Background(), Upload{
		Reader:   strings.NewReader("code\nA\n"),
		FileName: "a.csv",
	}, DefaultSettings())
	if !errors.Is(err, ErrTooManyUploads) {
		t.Errorf("GenerateCSV() error = %v, want ErrTooManyUploads", err)
	}
	if got := svc.UploadLimiterStatus().Active; got != 1 {
		t.Errorf("Active = %d, want 1", got)
	}
}

func TestNewService_ConfigDefaults(t *testing.T) {
	cfg := &config.Config{
		Upload: config.UploadConfig{MaxFileSize: 1024, MaxConcurrent: 2, MaxWaitTime: time.Second},
		Render: config.RenderConfig{DefaultSize: 150, DefaultLevel: "h", DefaultLayout: "table", DefaultDedup: false, MaxSize: 300},
	}
	svc := NewService(stubEncoder("", ""), cfg)

	want := Settings{
		Render:      RenderOptions{Size: 150, Level: ECCHigh},
		Deduplicate: false,
		Layout:      LayoutTable,
	}
	if got := svc.Defaults(); got != want {
		t.Errorf("Defaults() = %+v, want %+v", got, want)
	}
	if svc.MaxSize() != 300 {
		t.Errorf("MaxSize() = %d, want 300", svc.MaxSize())
	}

	sheet := svc.Render(context.Background(), []Record{{Identifier: "A"}}, Settings{Render: RenderOptions{Size: 900}})
	if sheet.Options != (RenderOptions{Size: 300, Level: ECCHigh}) {
		t.Errorf("Render options = %+v, want capped size and default level", sheet.Options)
	}
	if sheet.Layout != LayoutTable {
		t.Errorf("Render layout = %q, want default table", sheet.Layout)
	}
}
