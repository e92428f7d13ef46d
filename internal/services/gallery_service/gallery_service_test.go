package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/transport/http/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCollectionAPI struct {
	mock.Mock
}

func (m *MockCollectionAPI) CollectionTree(ctx context.Context) (models.CollectionTree, error) {
	args := m.Called(ctx)
	tree, _ := args.Get(0).(models.CollectionTree)
	return tree, args.Error(1)
}

func (m *MockCollectionAPI) GetCollection(ctx context.Context, id uint) (*models.Collection, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.Collection)
	return c, args.Error(1)
}

func (m *MockCollectionAPI) CollectionWorks(ctx context.Context, id uint, params dto.WorkListParams) (models.Page[models.Work], error) {
	args := m.Called(ctx, id, params)
	return args.Get(0).(models.Page[models.Work]), args.Error(1)
}

func (m *MockCollectionAPI) CreateCollection(ctx context.Context, req dto.CreateCollectionRequest) (*models.Collection, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*models.Collection)
	return c, args.Error(1)
}

func (m *MockCollectionAPI) UpdateCollection(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*models.Collection, error) {
	args := m.Called(ctx, id, req)
	c, _ := args.Get(0).(*models.Collection)
	return c, args.Error(1)
}

func (m *MockCollectionAPI) DeleteCollection(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCollectionAPI) UpdateCollectionOrder(ctx context.Context, ids []uint) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockCollectionAPI) AddCollectionWorks(ctx context.Context, id uint, workIDs []uint) error {
	return m.Called(ctx, id, workIDs).Error(0)
}

func (m *MockCollectionAPI) RemoveCollectionWorks(ctx context.Context, id uint, workIDs []uint) error {
	return m.Called(ctx, id, workIDs).Error(0)
}

func (m *MockCollectionAPI) UpdateCollectionWorkOrder(ctx context.Context, id uint, workIDs []uint) error {
	return m.Called(ctx, id, workIDs).Error(0)
}

func uintPtr(v uint) *uint { return &v }

// 1 art
// ├── 2 sketches
// │   └── 4 ink
// └── 3 paintings
// 5 photos
func sampleTree() models.CollectionTree {
	return models.CollectionTree{
		{ID: 1, Name: "art", SubCollections: []models.Collection{
			{ID: 2, Name: "sketches", ParentID: uintPtr(1), SubCollections: []models.Collection{
				{ID: 4, Name: "ink", ParentID: uintPtr(2)},
			}},
			{ID: 3, Name: "paintings", ParentID: uintPtr(1)},
		}},
		{ID: 5, Name: "photos"},
	}
}

func newGallery() (*GalleryService, *MockCollectionAPI) {
	api := new(MockCollectionAPI)
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return NewGalleryService(log, api), api
}

func TestGalleryService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, api := newGallery()

	api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Once()
	api.On("DeleteCollection", mock.Anything, uint(2)).Return(nil).Once()

	_, err := svc.Tree(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 2))

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	assert.Nil(t, tree.Find(2))
	assert.Nil(t, tree.Find(4))
	assert.NotNil(t, tree.Find(3))

	// only the collection itself goes; no work is touched
	api.AssertNumberOfCalls(t, "DeleteCollection", 1)
	api.AssertNotCalled(t, "RemoveCollectionWorks", mock.Anything, mock.Anything, mock.Anything)
	api.AssertExpectations(t)
}

func TestGalleryService_DeleteFailureKeepsTree(t *testing.T) {
	ctx := context.Background()
	svc, api := newGallery()

	api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Once()
	api.On("DeleteCollection", mock.Anything, uint(2)).Return(errors.New("boom")).Once()

	_, err := svc.Tree(ctx)
	require.NoError(t, err)

	require.Error(t, svc.Delete(ctx, 2))

	tree, _ := svc.Tree(ctx)
	assert.NotNil(t, tree.Find(2))
}

func TestGalleryService_Move(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		id      uint
		parent  *uint
		wantErr error
	}{
		{name: "onto itself", id: 1, parent: uintPtr(1), wantErr: ErrCycle},
		{name: "below own child", id: 1, parent: uintPtr(2), wantErr: ErrCycle},
		{name: "below own grandchild", id: 1, parent: uintPtr(4), wantErr: ErrCycle},
		{name: "unknown parent", id: 3, parent: uintPtr(99), wantErr: ErrCollectionNotFound},
		{name: "unknown collection", id: 99, parent: nil, wantErr: ErrCollectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, api := newGallery()
			api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Once()

			_, err := svc.Move(ctx, tt.id, tt.parent)
			require.ErrorIs(t, err, tt.wantErr)
			api.AssertNotCalled(t, "UpdateCollection", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("sideways move", func(t *testing.T) {
		svc, api := newGallery()
		api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Twice()
		api.On("UpdateCollection", mock.Anything, uint(4), dto.UpdateCollectionRequest{Name: "ink", ParentID: uintPtr(5)}).
			Return(&models.Collection{ID: 4, Name: "ink", ParentID: uintPtr(5)}, nil).Once()

		c, err := svc.Move(ctx, 4, uintPtr(5))
		require.NoError(t, err)
		assert.Equal(t, uint(5), *c.ParentID)
		api.AssertExpectations(t)
	})

	t.Run("to the root", func(t *testing.T) {
		svc, api := newGallery()
		api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Twice()
		api.On("UpdateCollection", mock.Anything, uint(2), dto.UpdateCollectionRequest{Name: "sketches"}).
			Return(&models.Collection{ID: 2, Name: "sketches"}, nil).Once()

		_, err := svc.Move(ctx, 2, nil)
		require.NoError(t, err)
		api.AssertExpectations(t)
	})
}

func TestGalleryService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("blank name", func(t *testing.T) {
		svc, api := newGallery()

		_, err := svc.Create(ctx, dto.CreateCollectionRequest{Name: "  "})
		require.ErrorIs(t, err, validate.ErrValidation)
		assert.Empty(t, api.Calls)
	})

	t.Run("under a parent", func(t *testing.T) {
		svc, api := newGallery()
		api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil).Twice()
		api.On("CreateCollection", mock.Anything, dto.CreateCollectionRequest{Name: "charcoal", ParentID: uintPtr(2)}).
			Return(&models.Collection{ID: 6, Name: "charcoal"}, nil).Once()

		c, err := svc.Create(ctx, dto.CreateCollectionRequest{Name: " charcoal ", ParentID: uintPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, uint(6), c.ID)
		api.AssertExpectations(t)
	})
}

func TestGalleryService_ReorderSiblings(t *testing.T) {
	ctx := context.Background()
	svc, api := newGallery()

	api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil)
	api.On("UpdateCollectionOrder", mock.Anything, []uint{3, 2}).Return(nil).Once()

	require.NoError(t, svc.ReorderSiblings(ctx, uintPtr(1), []uint{3, 2}))
	assert.ErrorIs(t, svc.ReorderSiblings(ctx, uintPtr(1), []uint{3, 5}), validate.ErrValidation)
	assert.ErrorIs(t, svc.ReorderSiblings(ctx, nil, []uint{1}), validate.ErrValidation)

	api.AssertExpectations(t)
}

func TestGalleryService_Works(t *testing.T) {
	ctx := context.Background()
	svc, api := newGallery()

	params := dto.WorkListParams{Page: 1, PageSize: 20}
	api.On("CollectionWorks", mock.Anything, uint(3), params).
		Return(models.Page[models.Work]{Items: []models.Work{{ID: 8}}}, nil).Once()

	page, err := svc.Works(3)(ctx, params)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.ErrorIs(t, svc.AddWorks(ctx, 3, nil), validate.ErrValidation)
	api.On("AddCollectionWorks", mock.Anything, uint(3), []uint{8, 9}).Return(nil).Once()
	require.NoError(t, svc.AddWorks(ctx, 3, []uint{8, 9}))

	api.AssertExpectations(t)
}

func TestGalleryService_EditCollection(t *testing.T) {
	ctx := context.Background()
	svc, api := newGallery()

	api.On("GetCollection", mock.Anything, uint(2)).
		Return(&models.Collection{ID: 2, Name: "sketches", ParentID: uintPtr(1)}, nil).Once()
	api.On("CollectionTree", mock.Anything).Return(sampleTree(), nil)

	form, err := svc.EditCollection(ctx, 2)
	require.NoError(t, err)

	t.Run("cycle keeps the draft", func(t *testing.T) {
		form.Edit(func(d *CollectionDraft) { d.ParentID = uintPtr(4) })

		_, err := form.Save(ctx)
		require.ErrorIs(t, err, ErrCycle)
		assert.Equal(t, uint(4), *form.Draft().ParentID)
		api.AssertNotCalled(t, "UpdateCollection", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("save", func(t *testing.T) {
		form.Edit(func(d *CollectionDraft) {
			d.ParentID = uintPtr(5)
			d.Name = " drafts "
		})
		api.On("UpdateCollection", mock.Anything, uint(2), dto.UpdateCollectionRequest{Name: "drafts", ParentID: uintPtr(5)}).
			Return(&models.Collection{ID: 2, Name: "drafts", ParentID: uintPtr(5)}, nil).Once()

		stored, err := form.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, "drafts", stored.Name)
		assert.False(t, form.Dirty())
	})
}
