package predict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/VisionServe/pkg/errors"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{
			name: "simple with one image",
			req: Request{
				Mode: ModeSimple,
				Data: []Input{{URL: "http://x/a.jpg", ContentType: "image/jpeg"}},
			},
		},
		{
			name:    "unknown mode",
			req:     Request{Mode: "batch", Data: []Input{{URL: "u"}}},
			wantErr: true,
		},
		{
			name:    "empty data",
			req:     Request{Mode: ModeSimple},
			wantErr: true,
		},
		{
			name: "file mode rejects results_to_show",
			req: Request{
				Mode:          ModeFile,
				ResultsToShow: true,
				Data:          []Input{{URL: "u", ContentType: "application/pdf"}},
			},
			wantErr: true,
		},
		{
			name: "image mode rejects multiple inputs",
			req: Request{
				Mode: ModeImage,
				Data: []Input{
					{URL: "a", ContentType: "image/png"},
					{URL: "b", ContentType: "image/png"},
				},
			},
			wantErr: true,
		},
		{
			name: "simple video rejects multiple inputs",
			req: Request{
				Mode: ModeSimple,
				Data: []Input{
					{URL: "a", ContentType: "video/mp4"},
					{URL: "b", ContentType: "video/mp4"},
				},
			},
			wantErr: true,
		},
		{
			name: "simple allows multiple images",
			req: Request{
				Mode: ModeSimple,
				Data: []Input{
					{URL: "a", ContentType: "image/png"},
					{URL: "b", ContentType: "image/png"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInputContentTypeJSONKey(t *testing.T) {
	var in Input
	require.NoError(t, json.Unmarshal([]byte(`{"url":"http://x/v.mp4","content-type":"video/mp4"}`), &in))
	assert.Equal(t, "video/mp4", in.ContentType)
	assert.True(t, in.IsVideo())
	assert.False(t, in.IsImage())
}

func TestVideoOption(t *testing.T) {
	r := Request{Options: map[string]interface{}{
		"video": map[string]interface{}{"fps": float64(10)},
	}}
	assert.Equal(t, float64(10), r.VideoOption("fps"))
	assert.Nil(t, r.VideoOption("frames"))

	empty := Request{}
	assert.Nil(t, empty.VideoOption("fps"))
}

func TestCallbackWithoutResults(t *testing.T) {
	c := Callback{ID: "r1", Success: true, Count: 3, Results: []interface{}{"a"}}
	stripped := c.WithoutResults()
	assert.Nil(t, stripped.Results)
	assert.Equal(t, 3, stripped.Count)
	assert.NotNil(t, c.Results)
}
