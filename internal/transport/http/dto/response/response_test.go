package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/transport/http/dto/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_Err(t *testing.T) {
	ok := response.Response{Code: 0, Message: "success"}
	assert.NoError(t, ok.Err())

	bad := response.Response{Code: 1002, Message: "resource not found"}
	err := bad.Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, response.ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), response.ErrNotFound)
	assert.NotErrorIs(t, err, response.ErrConflict)
	assert.Equal(t, "resource not found", response.Message(err))
	assert.Equal(t, "boom", response.Message(errors.New("boom")))
}

func TestResponse_Decode(t *testing.T) {
	var tag models.Tag
	r := response.Response{Data: json.RawMessage(`{"id":3,"name":"sky"}`)}
	require.NoError(t, r.Decode(&tag))
	assert.Equal(t, "sky", tag.Name)

	untouched := models.Tag{Name: "keep"}
	require.NoError(t, response.Response{Data: json.RawMessage("null")}.Decode(&untouched))
	assert.Equal(t, "keep", untouched.Name)
}

func TestDecodeList(t *testing.T) {
	t.Run("bare array", func(t *testing.T) {
		page, err := response.DecodeList[models.Tag](json.RawMessage(`[{"id":1},{"id":2}]`))
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("items object", func(t *testing.T) {
		page, err := response.DecodeList[models.Work](json.RawMessage(
			`{"items":[{"id":9,"title":"a"}],"total":41,"page":3,"page_size":20,"total_pages":3}`))
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, uint(9), page.Items[0].ID)
		assert.Equal(t, 41, page.Total)
		assert.Equal(t, 3, page.Page)
	})

	t.Run("null and missing items", func(t *testing.T) {
		page, err := response.DecodeList[models.Tag](nil)
		require.NoError(t, err)
		assert.NotNil(t, page.Items)

		page, err = response.DecodeList[models.Tag](json.RawMessage(`{}`))
		require.NoError(t, err)
		assert.Empty(t, page.Items)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := response.DecodeList[models.Tag](json.RawMessage(`"nope"`))
		assert.Error(t, err)
	})
}
