package certificates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ceue-certificates/certgen/internal/delivery"
	"ceue-certificates/certgen/internal/registry"
	"ceue-certificates/certgen/pkg/docx"
	"ceue-certificates/certgen/pkg/pdf"
)

// fileRenderer writes the merged paragraphs to dst and records them
type fileRenderer struct {
	mu    sync.Mutex
	fail  map[string]error
	texts map[string][]string
}

func newFileRenderer() *fileRenderer {
	return &fileRenderer{fail: map[string]error{}, texts: map[string][]string{}}
}

func (r *fileRenderer) Render(ctx context.Context, doc *docx.Document, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, err := range r.fail {
		if strings.Contains(dst, name) {
			return err
		}
	}
	r.texts[filepath.Base(dst)] = doc.Paragraphs()
	return os.WriteFile(dst, []byte("%PDF-"+strings.Join(doc.Paragraphs(), "|")), 0o644)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg *delivery.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func testOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()
	return opts
}

func rosterOf(names ...string) []Record {
	records := make([]Record, len(names))
	for i, name := range names {
		rec := testRecord()
		rec.Row = i + 1
		rec.FullName = name
		rec.CardNumber = fmt.Sprint(100 + i)
		records[i] = rec
	}
	return records
}

func TestGenerateWritesOneFilePerRecord(t *testing.T) {
	renderer := newFileRenderer()
	opts := testOptions(t)
	svc := NewService(renderer, nil, nil, nil, opts, zap.NewNop())
	tpl := newTemplate(t, "Declaramos que {{ estudante }} cumpriu {{ horas_totais }} horas.")

	summary, err := svc.Generate(context.Background(), tpl, rosterOf("ana silva", "bruno costa"), testParams())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.NotEqual(t, uuid.Nil, summary.RunID)

	ana := filepath.Join(opts.OutputDir, "Declaração de Créditos Complementares - ana silva.pdf")
	bruno := filepath.Join(opts.OutputDir, "Declaração de Créditos Complementares - bruno costa.pdf")
	assert.FileExists(t, ana)
	assert.FileExists(t, bruno)
	assert.Equal(t, ana, summary.Results[0].Output)
	assert.Equal(t, []string{"Declaramos que Ana Silva cumpriu 160 horas."}, renderer.texts[filepath.Base(ana)])
	assert.Equal(t, []string{"Declaramos que Bruno Costa cumpriu 160 horas."}, renderer.texts[filepath.Base(bruno)])
	assert.Equal(t, []string{"Declaramos que {{ estudante }} cumpriu {{ horas_totais }} horas."}, tpl.Paragraphs())
}

func TestGenerateContinuesAfterRenderFailure(t *testing.T) {
	renderer := newFileRenderer()
	renderer.fail["ana silva"] = errors.New("soffice crashed")
	opts := testOptions(t)
	svc := NewService(renderer, nil, nil, nil, opts, zap.NewNop())

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), rosterOf("ana silva", "bruno costa"), testParams())
	require.ErrorIs(t, err, ErrRecordsFailed)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	var recErr *RecordError
	require.ErrorAs(t, summary.Results[0].Err, &recErr)
	assert.Equal(t, StageRender, recErr.Stage)
	assert.Equal(t, 1, recErr.Row)
	assert.Equal(t, "ana silva", recErr.Name)
	assert.Equal(t, StatusFailed, summary.Results[0].Status())

	assert.NoError(t, summary.Results[1].Err)
	assert.FileExists(t, summary.Results[1].Output)
	assert.Len(t, summary.Errors(), 1)
}

func TestGenerateReportsDeriveFailures(t *testing.T) {
	records := rosterOf("ana silva", "", "carla dias")
	records[2].EntryMonth = "x"
	svc := NewService(newFileRenderer(), nil, nil, nil, testOptions(t), zap.NewNop())

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), records, testParams())
	require.ErrorIs(t, err, ErrRecordsFailed)

	assert.NoError(t, summary.Results[0].Err)
	assert.ErrorIs(t, summary.Results[1].Err, ErrMissingField)
	assert.Equal(t, StageDerive, summary.Results[1].FailedStage())
	assert.Equal(t, 2, summary.Results[1].Row)
	assert.ErrorIs(t, summary.Results[2].Err, ErrInvalidMonth)
	assert.Contains(t, summary.Results[2].Err.Error(), "row 3 (carla dias)")
}

func TestGenerateKeepsInputOrderWithWorkers(t *testing.T) {
	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("estudante %02d", i)
	}
	opts := testOptions(t)
	opts.Workers = 4
	svc := NewService(pdf.Serialized(newFileRenderer()), nil, nil, nil, opts, zap.NewNop())

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), rosterOf(names...), testParams())
	require.NoError(t, err)
	require.Len(t, summary.Results, len(names))
	for i, r := range summary.Results {
		assert.Equal(t, i+1, r.Row)
		assert.Equal(t, fmt.Sprintf("Estudante %02d", i), r.Student)
	}
}

func TestGenerateKeepsMergedDocument(t *testing.T) {
	opts := testOptions(t)
	opts.KeepMerged = true
	svc := NewService(newFileRenderer(), nil, nil, nil, opts, zap.NewNop())

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), rosterOf("ana silva"), testParams())
	require.NoError(t, err)

	merged := summary.Results[0].MergedPath
	assert.True(t, strings.HasSuffix(merged, "ana silva.docx"))
	doc, err := docx.Open(merged)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Silva"}, doc.Paragraphs())
}

func TestGenerateNonPositiveMonthsAreIssued(t *testing.T) {
	records := rosterOf("ana silva")
	records[0].EntryMonth = "10"
	records[0].ExitMonth = "8"
	svc := NewService(newFileRenderer(), nil, nil, nil, testOptions(t), zap.NewNop())

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ meses_total }}"), records, testParams())
	require.NoError(t, err)
	assert.Equal(t, -5, summary.Results[0].Months)
	assert.Equal(t, -80, summary.Results[0].Hours)
}

func TestGeneratePublishesDeliversAndRecords(t *testing.T) {
	publisher := new(mockPublisher)
	mailer := new(mockMailer)
	repo := registry.NewMemoryRepository()
	opts := testOptions(t)
	opts.Subject = "Declaração {{ ano }}"
	opts.Body = "Olá {{ estudante }}"
	svc := NewService(newFileRenderer(), publisher, mailer, repo, opts, zap.NewNop())

	records := rosterOf("ana silva", "bruno costa")
	records[0].Email = "ana@example.org"

	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".pdf")
	}), "application/pdf").Return("https://bucket/obj.pdf", nil).Twice()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg *delivery.Message) bool {
		return msg.To[0] == "ana@example.org" &&
			msg.Subject == "Declaração 2024" &&
			msg.Body == "Olá Ana Silva" &&
			len(msg.Attachments) == 1 &&
			strings.HasPrefix(string(msg.Attachments[0].Data), "%PDF-")
	})).Return("msg-1", nil).Once()

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), records, testParams())
	require.NoError(t, err)
	publisher.AssertExpectations(t)
	mailer.AssertExpectations(t)

	assert.True(t, summary.Results[0].Delivered)
	assert.False(t, summary.Results[1].Delivered)
	assert.Equal(t, "https://bucket/obj.pdf", summary.Results[0].ObjectURL)

	issuances, err := repo.ListByRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, issuances, 2)
	assert.Equal(t, "Ana Silva", issuances[0].Student)
	assert.Equal(t, registry.StatusIssued, issuances[0].Status)
	assert.Equal(t, "00000100", issuances[0].Card)
	assert.Equal(t, 2024, issuances[0].Year)
	assert.Contains(t, string(issuances[0].Values), `"estudante":"Ana Silva"`)
}

func TestGenerateRecordsFailuresWithStage(t *testing.T) {
	publisher := new(mockPublisher)
	repo := registry.NewMemoryRepository()
	svc := NewService(newFileRenderer(), publisher, nil, repo, testOptions(t), zap.NewNop())

	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("bucket missing"))

	summary, err := svc.Generate(context.Background(), newTemplate(t, "{{ estudante }}"), rosterOf("ana silva"), testParams())
	require.ErrorIs(t, err, ErrRecordsFailed)
	assert.Equal(t, StagePublish, summary.Results[0].FailedStage())

	issuances, err := repo.ListByRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	require.Len(t, issuances, 1)
	assert.Equal(t, registry.StatusFailed, issuances[0].Status)
	assert.Equal(t, string(StagePublish), issuances[0].Stage)
	assert.Contains(t, issuances[0].Error, "bucket missing")
}

func TestGenerateStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := NewService(newFileRenderer(), nil, nil, nil, testOptions(t), zap.NewNop())

	summary, err := svc.Generate(ctx, newTemplate(t, "{{ estudante }}"), rosterOf("ana silva"), testParams())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, summary)
}

func TestPreviewDerivesWithoutRendering(t *testing.T) {
	records := rosterOf("ana silva", "")
	renderer := newFileRenderer()
	svc := NewService(renderer, nil, nil, nil, testOptions(t), zap.NewNop())

	results := svc.Preview(records, testParams())
	require.Len(t, results, 2)
	assert.Equal(t, "Ana Silva", results[0].Student)
	assert.Equal(t, 10, results[0].Months)
	assert.Equal(t, 160, results[0].Hours)
	assert.ErrorIs(t, results[1].Err, ErrMissingField)
	assert.Empty(t, renderer.texts)
}

func TestRenderOne(t *testing.T) {
	svc := NewService(newFileRenderer(), nil, nil, nil, testOptions(t), zap.NewNop())
	dst := filepath.Join(t.TempDir(), "one.pdf")

	values, err := svc.RenderOne(context.Background(), newTemplate(t, "{{ estudante }}"), testRecord(), testParams(), dst)
	require.NoError(t, err)
	assert.Equal(t, "João Paulo", values[KeyStudent])
	assert.FileExists(t, dst)

	bad := testRecord()
	bad.CardNumber = "abc"
	_, err = svc.RenderOne(context.Background(), newTemplate(t, "x"), bad, testParams(), dst)
	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, StageDerive, recErr.Stage)
}
