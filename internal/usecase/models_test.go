package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CTIScraper/internal/classifier"
	"CTIScraper/internal/domain"
	"CTIScraper/internal/infrastructure/storage/memory"
)

func TestModelRegistry(t *testing.T) {
	t.Parallel()

	reg := NewModelRegistry(memory.New(), nil)
	ctx := context.Background()
	base := classifier.Config{ModelEnabled: true, ModelKey: "models/base.json", VectorizerKey: "models/vec.json", Threshold: 50}

	resolved, err := reg.ResolveActive(ctx, "content_filter", base)
	require.NoError(t, err)
	assert.Equal(t, base, resolved)

	_, err = reg.Register(ctx, domain.ModelVersion{Name: "content_filter", Version: " "})
	assert.ErrorIs(t, err, domain.ErrMissingField)

	v1, err := reg.Register(ctx, domain.ModelVersion{Name: "content_filter", Version: "v1", ModelKey: "models/v1.json"})
	require.NoError(t, err)
	assert.False(t, v1.Active)
	_, err = reg.Register(ctx, domain.ModelVersion{Name: "content_filter", Version: "v2", ModelKey: "models/v2.json", VectorizerKey: "models/v2-vec.json"})
	require.NoError(t, err)

	_, err = reg.Register(ctx, domain.ModelVersion{Name: "content_filter", Version: "v1", ModelKey: "other.json"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = reg.Activate(ctx, "content_filter", "v1")
	require.NoError(t, err)
	resolved, err = reg.ResolveActive(ctx, "content_filter", base)
	require.NoError(t, err)
	assert.Equal(t, "models/v1.json", resolved.ModelKey)
	assert.Equal(t, "models/vec.json", resolved.VectorizerKey)
	assert.Equal(t, "v1", resolved.ModelVersion)
	assert.Equal(t, base.Threshold, resolved.Threshold)

	_, err = reg.Activate(ctx, "content_filter", "v2")
	require.NoError(t, err)
	resolved, err = reg.ResolveActive(ctx, "content_filter", base)
	require.NoError(t, err)
	assert.Equal(t, "models/v2-vec.json", resolved.VectorizerKey)

	versions, err := reg.List(ctx, "content_filter")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	active := 0
	for _, v := range versions {
		if v.Active {
			active++
			assert.Equal(t, "v2", v.Version)
		}
	}
	assert.Equal(t, 1, active)

	_, err = reg.Activate(ctx, "content_filter", "v9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
