package qa_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surgewhisper/api/internal/models"
	"github.com/surgewhisper/api/pkg/ingest"
	"github.com/surgewhisper/api/pkg/llm"
	"github.com/surgewhisper/api/pkg/qa"
	"github.com/surgewhisper/api/pkg/store"
)

// memStore is an in-memory stand-in for the pgvector store, ranking by
// L2 distance and honoring answer expiry against an adjustable clock.
type memStore struct {
	mu      sync.Mutex
	nextDoc int
	titles  map[string]string
	chunks  []memChunk
	answers map[string]memAnswer
	ttls    map[string]time.Duration
	now     func() time.Time
}

type memChunk struct {
	docID string
	row   models.ChunkRow
}

type memAnswer struct {
	full    string
	expires time.Time
}

func newMemStore() *memStore {
	return &memStore{
		titles:  make(map[string]string),
		answers: make(map[string]memAnswer),
		ttls:    make(map[string]time.Duration),
		now:     time.Now,
	}
}

func (m *memStore) InsertDocument(_ context.Context, title string, _ *int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextDoc++
	id := fmt.Sprintf("doc-%d", m.nextDoc)
	m.titles[id] = title
	return id, nil
}

func (m *memStore) InsertChunks(_ context.Context, documentID string, rows []models.ChunkRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.chunks = append(m.chunks, memChunk{docID: documentID, row: r})
	}
	return nil
}

func (m *memStore) VectorSearch(_ context.Context, queryVec []float32, topK int) ([]models.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		hit  models.SearchHit
		dist float64
	}
	var ranked []scored
	for _, c := range m.chunks {
		var d float64
		for i := range queryVec {
			if i < len(c.row.Embedding) {
				diff := float64(queryVec[i] - c.row.Embedding[i])
				d += diff * diff
			}
		}
		ranked = append(ranked, scored{
			hit: models.SearchHit{
				DocID:   c.docID,
				Title:   m.titles[c.docID],
				Content: c.row.Content,
				Snippet: c.row.Snippet,
			},
			dist: math.Sqrt(d),
		})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].dist < ranked[j].dist })
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	hits := make([]models.SearchHit, len(ranked))
	for i, r := range ranked {
		hits[i] = r.hit
	}
	return hits, nil
}

func (m *memStore) Close() {}

func (m *memStore) SaveAnswer(_ context.Context, id, fullText string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers[id] = memAnswer{full: fullText, expires: m.now().Add(ttl)}
	m.ttls[id] = ttl
	return nil
}

func (m *memStore) LoadAnswer(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[id]
	if !ok || !a.expires.After(m.now()) {
		return "", store.ErrAnswerNotFound
	}
	return a.full, nil
}

// keywordEmbedder maps text mentioning endarterectomy near one axis
// and everything else near another, so retrieval ranking is
// deterministic in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) Dimension() int { return 3 }

func (e keywordEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "endarterectomy") {
		return []float32{1, 0, 0}, nil
	}
	return []float32{0, 1, 0}, nil
}

func (e keywordEmbedder) EmbedMany(ctx context.Context, texts []string, _ int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := e.EmbedOne(ctx, t)
		out[i] = v
	}
	return out, nil
}

// recordingDrafter captures what the orchestrator hands it.
type recordingDrafter struct {
	answer   string
	err      error
	question string
	contexts []string
}

func (d *recordingDrafter) Draft(_ context.Context, question string, contexts []string) (string, error) {
	d.question = question
	d.contexts = contexts
	if d.err != nil {
		return "", d.err
	}
	return d.answer, nil
}

// fakeExtractor returns canned text for any PDF bytes.
type fakeExtractor struct {
	text  string
	pages int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (string, *int, error) {
	p := f.pages
	return f.text, &p, nil
}

func newService(t *testing.T, ms *memStore, drafter *recordingDrafter, cfg qa.ServiceConfig) *qa.Service {
	t.Helper()
	var d interface {
		Draft(ctx context.Context, question string, contexts []string) (string, error)
	}
	if drafter != nil {
		d = drafter
	} else {
		real, err := llm.NewDrafterWithConfig(llm.DrafterConfig{})
		require.NoError(t, err)
		d = real
	}
	svc, err := qa.NewService(cfg, keywordEmbedder{}, ms, ms, d)
	require.NoError(t, err)
	return svc
}

func zipWithPDF(t *testing.T, name string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte("%PDF-1.4 fake body"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newService(t, newMemStore(), nil, qa.ServiceConfig{})

	_, err := svc.Ask(context.Background(), "   ", 0)
	assert.ErrorIs(t, err, qa.ErrEmptyQuestion)
}

func TestAsk_EmptyCorpusReturnsSentinel(t *testing.T) {
	ms := newMemStore()
	svc := newService(t, ms, nil, qa.ServiceConfig{EmptyAnswerTTL: 30 * time.Minute})

	res, err := svc.Ask(context.Background(), "What is eversion endarterectomy?", 0)
	require.NoError(t, err)

	assert.Equal(t, "No relevant information found in the current document set.", res.AnswerPreview)
	assert.False(t, res.IsTruncated)
	require.NotEmpty(t, res.AnswerID)

	full, err := svc.GetAnswer(context.Background(), res.AnswerID)
	require.NoError(t, err)
	assert.Equal(t, res.AnswerPreview, full)
	assert.Equal(t, 30*time.Minute, ms.ttls[res.AnswerID])
}

func TestAsk_EndToEnd(t *testing.T) {
	ms := newMemStore()

	ing, err := ingest.NewWithConfig(ingest.IngestorConfig{},
		&fakeExtractor{text: "Eversion endarterectomy involves transecting the artery.", pages: 1},
		keywordEmbedder{}, ms)
	require.NoError(t, err)

	results, err := ing.IngestZip(context.Background(), zipWithPDF(t, "vascular.pdf"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "vascular.pdf", results[0].Title)
	require.NotNil(t, results[0].Pages)
	assert.Equal(t, 1, *results[0].Pages)
	assert.Equal(t, 1, results[0].Chunks)

	// Real drafter with no credential configured: the deterministic
	// composer answers from context.
	svc := newService(t, ms, nil, qa.ServiceConfig{})

	res, err := svc.Ask(context.Background(), "What is eversion endarterectomy?", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, res.AnswerPreview)
	require.NotEmpty(t, res.AnswerID)

	full, err := svc.GetAnswer(context.Background(), res.AnswerID)
	require.NoError(t, err)
	assert.Contains(t, full, "endarterectomy")
}

func TestAsk_DraftFailureStitchesSnippets(t *testing.T) {
	ms := newMemStore()
	docID, _ := ms.InsertDocument(context.Background(), "doc.pdf", nil)
	require.NoError(t, ms.InsertChunks(context.Background(), docID, []models.ChunkRow{
		{Content: "Full passage about endarterectomy.", Snippet: "Snippet one.", Embedding: []float32{1, 0, 0}},
		{Content: "Second passage.", Snippet: "Snippet two.", Embedding: []float32{0.9, 0.1, 0}},
	}))

	drafter := &recordingDrafter{err: fmt.Errorf("completion provider down")}
	svc := newService(t, ms, drafter, qa.ServiceConfig{})

	res, err := svc.Ask(context.Background(), "endarterectomy?", 0)
	require.NoError(t, err)

	full, err := svc.GetAnswer(context.Background(), res.AnswerID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, "Based on the retrieved guidance:"))
	assert.Contains(t, full, "Snippet one.")
}

func TestAsk_ContextBudgetDropsLowerHits(t *testing.T) {
	ms := newMemStore()
	docID, _ := ms.InsertDocument(context.Background(), "doc.pdf", nil)
	require.NoError(t, ms.InsertChunks(context.Background(), docID, []models.ChunkRow{
		{Content: strings.Repeat("a", 50) + " endarterectomy", Snippet: "s1", Embedding: []float32{1, 0, 0}},
		{Content: strings.Repeat("b", 50), Snippet: "s2", Embedding: []float32{0.9, 0.1, 0}},
		{Content: strings.Repeat("c", 50), Snippet: "s3", Embedding: []float32{0.8, 0.2, 0}},
	}))

	drafter := &recordingDrafter{answer: "fine"}
	svc := newService(t, ms, drafter, qa.ServiceConfig{ContextBudget: 120})

	_, err := svc.Ask(context.Background(), "endarterectomy?", 0)
	require.NoError(t, err)

	// first two blocks fit in 120 chars; the third would exceed it
	require.Len(t, drafter.contexts, 2)
	assert.Contains(t, drafter.contexts[0], "endarterectomy")
}

func TestAsk_PreviewTruncation(t *testing.T) {
	ms := newMemStore()
	docID, _ := ms.InsertDocument(context.Background(), "doc.pdf", nil)
	require.NoError(t, ms.InsertChunks(context.Background(), docID, []models.ChunkRow{
		{Content: "endarterectomy context", Snippet: "s", Embedding: []float32{1, 0, 0}},
	}))

	long := strings.Repeat("word ", 300) // 1500 chars
	drafter := &recordingDrafter{answer: long}
	svc := newService(t, ms, drafter, qa.ServiceConfig{})

	res, err := svc.Ask(context.Background(), "endarterectomy?", 0)
	require.NoError(t, err)
	assert.True(t, res.IsTruncated)
	assert.Less(t, len(res.AnswerPreview), len(long))
	assert.True(t, strings.HasSuffix(res.AnswerPreview, "…"))

	full, err := svc.GetAnswer(context.Background(), res.AnswerID)
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(long), strings.TrimSpace(full))
}

func TestGetAnswer_ExpiresWithTTL(t *testing.T) {
	ms := newMemStore()
	current := time.Now()
	ms.now = func() time.Time { return current }

	svc := newService(t, ms, nil, qa.ServiceConfig{EmptyAnswerTTL: 30 * time.Minute})

	res, err := svc.Ask(context.Background(), "anything?", 0)
	require.NoError(t, err)

	_, err = svc.GetAnswer(context.Background(), res.AnswerID)
	require.NoError(t, err)

	current = current.Add(31 * time.Minute)
	_, err = svc.GetAnswer(context.Background(), res.AnswerID)
	assert.ErrorIs(t, err, store.ErrAnswerNotFound)
}

func TestGetAnswer_EmptyID(t *testing.T) {
	svc := newService(t, newMemStore(), nil, qa.ServiceConfig{})

	_, err := svc.GetAnswer(context.Background(), " ")
	assert.ErrorIs(t, err, qa.ErrEmptyAnswerID)
}
