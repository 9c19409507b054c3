package templates

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydocs/internal/storage"
	storeMocks "supplydocs/internal/storage/mocks"
)

func TestObjectStore_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns template content", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Get", ctx, "templates/supply-document.docx").
			Return(io.NopCloser(strings.NewReader("template-bytes")), storage.ObjectInfo{Key: "templates/supply-document.docx"}, nil)

		store := NewObjectStore(mStore)
		buf, err := store.Fetch(ctx, "templates/supply-document.docx")
		require.NoError(t, err)
		assert.Equal(t, []byte("template-bytes"), buf)
		mStore.AssertExpectations(t)
	})

	t.Run("missing template maps to ErrNotFound", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Get", ctx, "templates/absent.docx").
			Return(nil, storage.ObjectInfo{}, fmt.Errorf("%w: templates/absent.docx", storage.ErrObjectNotFound))

		store := NewObjectStore(mStore)
		_, err := store.Fetch(ctx, "templates/absent.docx")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("connectivity fault is not ErrNotFound", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Get", ctx, "templates/supply-document.docx").
			Return(nil, storage.ObjectInfo{}, errors.New("connection refused"))

		store := NewObjectStore(mStore)
		_, err := store.Fetch(ctx, "templates/supply-document.docx")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("each fetch returns an independent buffer", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mStore.On("Get", ctx, "t.docx").
			Return(io.NopCloser(strings.NewReader("abc")), storage.ObjectInfo{}, nil).Once()
		mStore.On("Get", ctx, "t.docx").
			Return(io.NopCloser(strings.NewReader("abc")), storage.ObjectInfo{}, nil).Once()

		store := NewObjectStore(mStore)
		first, err := store.Fetch(ctx, "t.docx")
		require.NoError(t, err)
		second, err := store.Fetch(ctx, "t.docx")
		require.NoError(t, err)

		first[0] = 'x'
		assert.Equal(t, []byte("abc"), second)
	})
}
