package services_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/validate"
	media "illust_nest/internal/services/media_service"
	services "illust_nest/internal/services/upload_service"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWorkAPI struct {
	mock.Mock
}

func (m *MockWorkAPI) CheckDuplicateImages(ctx context.Context, req dto.CheckDuplicatesRequest) ([]models.DuplicateImageInfo, error) {
	args := m.Called(ctx, req)
	dups, _ := args.Get(0).([]models.DuplicateImageInfo)
	return dups, args.Error(1)
}

func (m *MockWorkAPI) CreateWork(ctx context.Context, in dto.CreateWorkInput, files []dto.UploadFile) (*models.Work, error) {
	args := m.Called(ctx, in, files)
	work, _ := args.Get(0).(*models.Work)
	return work, args.Error(1)
}

func (m *MockWorkAPI) UpdateWork(ctx context.Context, id uint, req dto.UpdateWorkRequest) (*models.Work, error) {
	args := m.Called(ctx, id, req)
	work, _ := args.Get(0).(*models.Work)
	return work, args.Error(1)
}

func (m *MockWorkAPI) UpdateImageOrder(ctx context.Context, workID uint, imageIDs []uint) error {
	args := m.Called(ctx, workID, imageIDs)
	return args.Error(0)
}

func (m *MockWorkAPI) AddImages(ctx context.Context, workID uint, files []dto.UploadFile) ([]models.Image, error) {
	args := m.Called(ctx, workID, files)
	images, _ := args.Get(0).([]models.Image)
	return images, args.Error(1)
}

type MockConfirmer struct {
	mock.Mock
}

func (m *MockConfirmer) ConfirmDuplicates(ctx context.Context, report services.DuplicateReport) (bool, error) {
	args := m.Called(ctx, report)
	return args.Bool(0), args.Error(1)
}

func memFile(name, content string) services.FileSource {
	return services.FileSource{
		Name: name,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func pngFile(t *testing.T, name string, w, h int) services.FileSource {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return memFile(name, buf.String())
}

func sha(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func hashesOf(files []dto.UploadFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Hash
	}
	return out
}

type fixture struct {
	api       *MockWorkAPI
	confirmer *MockConfirmer
	previews  *media.HandleRegistry
	svc       *services.UploadService
}

func newFixture() *fixture {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	f := &fixture{
		api:       new(MockWorkAPI),
		confirmer: new(MockConfirmer),
		previews:  media.NewHandleRegistry(0),
	}
	f.svc = services.NewUploadService(log, f.api, f.previews, f.confirmer)
	return f
}

func TestUploadService_AddFiles(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes and previews every file", func(t *testing.T) {
		f := newFixture()

		err := f.svc.AddFiles(ctx, pngFile(t, "a.png", 120, 80), memFile("scan.tiff", "not really a tiff"))
		require.NoError(t, err)

		assert.Equal(t, services.StateReady, f.svc.State())

		items := f.svc.Items()
		require.Len(t, items, 2)

		assert.Equal(t, "a.png", items[0].Name)
		assert.Equal(t, "image/png", items[0].MimeType)
		assert.Len(t, items[0].Hash, 64)
		assert.Equal(t, 120, items[0].Width)
		assert.Equal(t, 80, items[0].Height)
		assert.NotEmpty(t, items[0].BlurHash)
		assert.NotEmpty(t, items[0].PreviewHandle)
		assert.False(t, items[0].RequiresTranscode)

		assert.Equal(t, sha("not really a tiff"), items[1].Hash)
		assert.True(t, items[1].RequiresTranscode)
		assert.Empty(t, items[1].PreviewHandle)

		assert.Equal(t, 1, f.previews.Live())
	})

	t.Run("dimensions survive a failed placeholder", func(t *testing.T) {
		restore := services.SetBlurHashEncoder(func(int, int, image.Image) (string, error) {
			return "", errors.New("bad components")
		})
		defer restore()

		f := newFixture()
		require.NoError(t, f.svc.AddFiles(ctx, pngFile(t, "a.png", 120, 80)))

		items := f.svc.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 120, items[0].Width)
		assert.Equal(t, 80, items[0].Height)
		assert.Empty(t, items[0].BlurHash)
	})

	t.Run("one failure adds nothing", func(t *testing.T) {
		f := newFixture()

		broken := services.FileSource{
			Name: "broken.png",
			Open: func() (io.ReadCloser, error) { return nil, errors.New("permission denied") },
		}

		err := f.svc.AddFiles(ctx, memFile("a.png", "aaa"), broken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.png")

		assert.Equal(t, services.StateIdle, f.svc.State())
		assert.Empty(t, f.svc.Items())
		assert.Equal(t, 0, f.previews.Live())
	})

	t.Run("failure keeps earlier items", func(t *testing.T) {
		f := newFixture()

		require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "aaa")))

		broken := services.FileSource{
			Name: "broken.png",
			Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") },
		}
		require.Error(t, f.svc.AddFiles(ctx, broken))

		assert.Equal(t, services.StateReady, f.svc.State())
		assert.Len(t, f.svc.Items(), 1)
	})
}

func TestUploadService_RemoveAndMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "a"), memFile("b.png", "b"), memFile("c.png", "c")))
	require.Equal(t, 3, f.previews.Live())

	require.NoError(t, f.svc.Move(2, 0))
	names := func() []string {
		var out []string
		for _, item := range f.svc.Items() {
			out = append(out, item.Name)
		}
		return out
	}
	assert.Equal(t, []string{"c.png", "a.png", "b.png"}, names())

	require.NoError(t, f.svc.Remove(1))
	assert.Equal(t, []string{"c.png", "b.png"}, names())
	assert.Equal(t, 2, f.previews.Live())

	assert.ErrorIs(t, f.svc.Remove(5), services.ErrNoSuchItem)
	assert.ErrorIs(t, f.svc.Move(0, 2), services.ErrNoSuchItem)

	require.NoError(t, f.svc.Remove(0))
	require.NoError(t, f.svc.Remove(0))
	assert.Equal(t, services.StateIdle, f.svc.State())
	assert.Equal(t, 0, f.previews.Live())
}

func TestUploadService_Save_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty title", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "a")))
		f.svc.SetForm(services.WorkForm{Title: "   ", Rating: 3})

		_, err := f.svc.Save(ctx)
		require.ErrorIs(t, err, validate.ErrValidation)
		assert.Equal(t, services.StateReady, f.svc.State())
		f.api.AssertNotCalled(t, "CheckDuplicateImages", mock.Anything, mock.Anything)
		f.api.AssertNotCalled(t, "CreateWork", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("new work without images", func(t *testing.T) {
		f := newFixture()
		f.svc.SetForm(services.WorkForm{Title: "sunset"})

		_, err := f.svc.Save(ctx)
		require.ErrorIs(t, err, validate.ErrValidation)
		assert.Equal(t, services.StateIdle, f.svc.State())
		assert.Empty(t, f.api.Calls)
	})

	t.Run("rating out of range", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "a")))
		f.svc.SetForm(services.WorkForm{Title: "sunset", Rating: 6})

		_, err := f.svc.Save(ctx)
		require.ErrorIs(t, err, validate.ErrValidation)
		assert.Empty(t, f.api.Calls)
	})
}

func TestUploadService_Save_IdenticalFilesInOneBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "same"), memFile("copy.png", "same")))
	f.svc.SetForm(services.WorkForm{Title: "twins", Rating: 2, TagIDs: []uint{4}})

	f.api.On("CheckDuplicateImages", mock.Anything, dto.CheckDuplicatesRequest{ImageHashes: []string{sha("same")}}).
		Return([]models.DuplicateImageInfo{}, nil).Once()

	var sent []dto.UploadFile
	f.api.On("CreateWork", mock.Anything, dto.CreateWorkInput{Title: "twins", Rating: 2, TagIDs: []uint{4}}, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]dto.UploadFile) }).
		Return(&models.Work{ID: 9, Title: "twins"}, nil).Once()

	work, err := f.svc.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(9), work.ID)

	assert.Equal(t, []string{sha("same"), sha("same")}, hashesOf(sent))
	f.confirmer.AssertNotCalled(t, "ConfirmDuplicates", mock.Anything, mock.Anything)

	assert.Equal(t, services.StateIdle, f.svc.State())
	assert.Empty(t, f.svc.Items())
	assert.Equal(t, 0, f.previews.Live())
	f.api.AssertExpectations(t)
}

func TestUploadService_Save_Duplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "old"), memFile("b.png", "new")))
	f.svc.SetForm(services.WorkForm{Title: "again", Rating: 5, IsPublic: true})

	dups := []models.DuplicateImageInfo{
		{ImageHash: sha("old"), WorkID: 3, ImageID: 30},
		{ImageHash: sha("old"), WorkID: 7, ImageID: 70},
	}
	checkReq := dto.CheckDuplicatesRequest{ImageHashes: []string{sha("old"), sha("new")}}
	f.api.On("CheckDuplicateImages", mock.Anything, checkReq).Return(dups, nil).Twice()

	wantReport := services.DuplicateReport{
		Hashes:  []string{sha("old")},
		WorkIDs: []uint{3, 7},
		Matches: dups,
	}

	t.Run("cancel returns to ready with nothing lost", func(t *testing.T) {
		f.confirmer.On("ConfirmDuplicates", mock.Anything, wantReport).Return(false, nil).Once()

		_, err := f.svc.Save(ctx)
		require.ErrorIs(t, err, services.ErrCancelled)

		assert.Equal(t, services.StateReady, f.svc.State())
		assert.Len(t, f.svc.Items(), 2)
		assert.Equal(t, 2, f.previews.Live())
		assert.Equal(t, "again", f.svc.Form().Title)
		f.api.AssertNotCalled(t, "CreateWork", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("confirm on a fresh save commits", func(t *testing.T) {
		f.confirmer.On("ConfirmDuplicates", mock.Anything, wantReport).Return(true, nil).Once()

		var sent []dto.UploadFile
		f.api.On("CreateWork", mock.Anything, dto.CreateWorkInput{Title: "again", Rating: 5, IsPublic: true}, mock.Anything).
			Run(func(args mock.Arguments) { sent = args.Get(2).([]dto.UploadFile) }).
			Return(&models.Work{ID: 11}, nil).Once()

		work, err := f.svc.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint(11), work.ID)

		assert.Equal(t, []string{sha("old"), sha("new")}, hashesOf(sent))
		assert.Equal(t, services.StateIdle, f.svc.State())
		assert.Equal(t, 0, f.previews.Live())
	})

	f.api.AssertNumberOfCalls(t, "CheckDuplicateImages", 2)
	f.api.AssertExpectations(t)
	f.confirmer.AssertExpectations(t)
}

func TestUploadService_Save_DialogIsAdvisory(t *testing.T) {
	ctx := context.Background()

	capture := func(dups []models.DuplicateImageInfo) (dto.CreateWorkInput, []string) {
		f := newFixture()
		require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "x"), memFile("b.png", "y")))
		f.svc.SetForm(services.WorkForm{Title: "same", Description: "d", Rating: 1, TagIDs: []uint{1, 2}})

		f.api.On("CheckDuplicateImages", mock.Anything, mock.Anything).Return(dups, nil).Once()
		f.confirmer.On("ConfirmDuplicates", mock.Anything, mock.Anything).Return(true, nil).Maybe()

		var (
			in    dto.CreateWorkInput
			files []dto.UploadFile
		)
		f.api.On("CreateWork", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				in = args.Get(1).(dto.CreateWorkInput)
				files = args.Get(2).([]dto.UploadFile)
			}).
			Return(&models.Work{ID: 1}, nil).Once()

		_, err := f.svc.Save(ctx)
		require.NoError(t, err)
		return in, hashesOf(files)
	}

	cleanIn, cleanHashes := capture(nil)
	dupIn, dupHashes := capture([]models.DuplicateImageInfo{{ImageHash: sha("x"), WorkID: 2, ImageID: 5}})

	assert.Equal(t, cleanIn, dupIn)
	assert.Equal(t, cleanHashes, dupHashes)
}

func TestUploadService_Save_CheckFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "a")))
	f.svc.SetForm(services.WorkForm{Title: "t"})

	f.api.On("CheckDuplicateImages", mock.Anything, mock.Anything).Return(nil, errors.New("offline")).Once()

	_, err := f.svc.Save(ctx)
	require.Error(t, err)
	assert.Equal(t, services.StateReady, f.svc.State())
	assert.Len(t, f.svc.Items(), 1)
}

func TestUploadService_Save_CommitFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AddFiles(ctx, memFile("a.png", "a")))
	f.svc.SetForm(services.WorkForm{Title: "t"})

	f.api.On("CheckDuplicateImages", mock.Anything, mock.Anything).Return(nil, nil).Once()
	f.api.On("CreateWork", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &response.APIError{Code: response.CodeBadRequest, Message: "unsupported image format"}).Once()

	_, err := f.svc.Save(ctx)
	require.Error(t, err)
	assert.Equal(t, "unsupported image format", response.Message(err))

	assert.Equal(t, services.StateReady, f.svc.State())
	assert.Len(t, f.svc.Items(), 1)
	assert.Equal(t, 1, f.previews.Live())
}

func TestUploadService_EditExistingWork(t *testing.T) {
	ctx := context.Background()

	existing := models.Work{
		ID:     5,
		Title:  "old title",
		Rating: 3,
		Images: []models.Image{{ID: 50}, {ID: 51}},
		Tags:   []models.Tag{{ID: 8}},
	}

	t.Run("metadata only skips the duplicate check", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.svc.EditWork(existing))
		require.NoError(t, f.svc.ReorderExisting([]uint{51, 50}))

		form := f.svc.Form()
		form.Title = "new title"
		f.svc.SetForm(form)

		f.api.On("UpdateWork", mock.Anything, uint(5), dto.UpdateWorkRequest{Title: "new title", Rating: 3, TagIDs: []uint{8}}).
			Return(&models.Work{ID: 5, Title: "new title", Images: existing.Images}, nil).Once()
		f.api.On("UpdateImageOrder", mock.Anything, uint(5), []uint{51, 50}).Return(nil).Once()

		work, err := f.svc.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint{51, 50}, work.ImageIDs())

		f.api.AssertNotCalled(t, "CheckDuplicateImages", mock.Anything, mock.Anything)
		f.api.AssertNotCalled(t, "AddImages", mock.Anything, mock.Anything, mock.Anything)
		f.api.AssertExpectations(t)
	})

	t.Run("new images are checked against every work", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.svc.EditWork(existing))
		require.NoError(t, f.svc.AddFiles(ctx, memFile("c.png", "c")))

		dups := []models.DuplicateImageInfo{{ImageHash: sha("c"), WorkID: 5, ImageID: 50}}
		f.api.On("CheckDuplicateImages", mock.Anything, dto.CheckDuplicatesRequest{
			ImageHashes: []string{sha("c")},
		}).Return(dups, nil).Once()
		f.confirmer.On("ConfirmDuplicates", mock.Anything, mock.Anything).Return(true, nil).Once()
		f.api.On("UpdateWork", mock.Anything, uint(5), mock.Anything).
			Return(&models.Work{ID: 5, Images: existing.Images}, nil).Once()
		f.api.On("UpdateImageOrder", mock.Anything, uint(5), []uint{50, 51}).Return(nil).Once()
		f.api.On("AddImages", mock.Anything, uint(5), mock.Anything).
			Return([]models.Image{{ID: 52}}, nil).Once()

		work, err := f.svc.Save(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint{50, 51, 52}, work.ImageIDs())
		assert.Equal(t, []uint{50, 51, 52}, imageIDs(f.svc.Existing()))
		f.api.AssertExpectations(t)
		f.confirmer.AssertExpectations(t)
	})

	t.Run("reorder must be a permutation", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.svc.EditWork(existing))

		assert.ErrorIs(t, f.svc.ReorderExisting([]uint{50}), validate.ErrValidation)
		assert.ErrorIs(t, f.svc.ReorderExisting([]uint{50, 99}), validate.ErrValidation)
	})
}

func imageIDs(images []models.Image) []uint {
	out := make([]uint, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}
