package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surgewhisper/api/pkg/extract"
)

// scriptedRunner answers per command name.
type scriptedRunner struct {
	outputs map[string][]byte
	errs    map[string]error
}

func (r *scriptedRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if err := r.errs[name]; err != nil {
		return nil, err
	}
	return r.outputs[name], nil
}

func TestExtract(t *testing.T) {
	runner := &scriptedRunner{outputs: map[string][]byte{
		"pdftotext": []byte("Eversion endarterectomy involves transecting the artery.\n"),
		"pdfinfo":   []byte("Title: something\nPages:          3\nEncrypted: no\n"),
	}}
	e := extract.New(extract.WithRunner(runner))

	text, pages, err := e.Extract(context.Background(), []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Contains(t, text, "endarterectomy")
	require.NotNil(t, pages)
	assert.Equal(t, 3, *pages)
}

func TestExtract_PageCountUnavailable(t *testing.T) {
	runner := &scriptedRunner{
		outputs: map[string][]byte{"pdftotext": []byte("text")},
		errs:    map[string]error{"pdfinfo": errors.New("no pdfinfo")},
	}
	e := extract.New(extract.WithRunner(runner))

	text, pages, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "text", text)
	assert.Nil(t, pages)
}

func TestExtract_TextFailureIsFatal(t *testing.T) {
	runner := &scriptedRunner{errs: map[string]error{"pdftotext": errors.New("corrupt file")}}
	e := extract.New(extract.WithRunner(runner))

	_, _, err := e.Extract(context.Background(), []byte("junk"))
	assert.Error(t, err)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, extract.IsPDF("guide.pdf"))
	assert.True(t, extract.IsPDF("dir/GUIDE.PDF"))
	assert.False(t, extract.IsPDF("guide.docx"))
	assert.False(t, extract.IsPDF("pdf"))
}
