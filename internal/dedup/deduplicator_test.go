package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/domain"
)

type fakeIndex struct {
	seen map[string]bool
	err  error
}

func (f *fakeIndex) HashExists(_ context.Context, fp string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.seen[fp], nil
}

func TestAdmitFillsFingerprint(t *testing.T) {
	t.Parallel()

	d := New(&fakeIndex{seen: map[string]bool{}})
	c := domain.Candidate{Title: "t", URL: "u", Content: "c"}

	ok, err := d.Admit(context.Background(), &c)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Fingerprint("t", "u", "c"), c.Fingerprint)
}

func TestAdmitRejectsKnownFingerprint(t *testing.T) {
	t.Parallel()

	fp := Fingerprint("t", "u", "c")
	d := New(&fakeIndex{seen: map[string]bool{fp: true}})

	ok, err := d.Admit(context.Background(), &domain.Candidate{Title: "T", URL: "u", Content: "C"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdmitPropagatesLookupError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	d := New(&fakeIndex{err: boom})

	_, err := d.Admit(context.Background(), &domain.Candidate{Title: "t", URL: "u"})
	require.ErrorIs(t, err, boom)
}
