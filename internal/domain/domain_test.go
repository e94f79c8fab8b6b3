package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentitySameSubject(t *testing.T) {
	base := Identity{UserID: "u1", ServerID: "s1", AccessToken: "t1", DeviceID: "d1"}

	tests := []struct {
		name  string
		other Identity
		want  bool
	}{
		{name: "identical", other: base, want: true},
		{name: "device differs only", other: Identity{UserID: "u1", ServerID: "s1", AccessToken: "t1", DeviceID: "d2"}, want: true},
		{name: "user differs", other: Identity{UserID: "u2", ServerID: "s1", AccessToken: "t1"}, want: false},
		{name: "server differs", other: Identity{UserID: "u1", ServerID: "s2", AccessToken: "t1"}, want: false},
		{name: "token differs", other: Identity{UserID: "u1", ServerID: "s1", AccessToken: "t2"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.SameSubject(tt.other))
		})
	}
}

func TestIdentityUsableAndDefaults(t *testing.T) {
	assert.False(t, Identity{UserID: "u1"}.IsUsable())
	assert.False(t, Identity{AccessToken: "t"}.IsUsable())
	assert.True(t, Identity{UserID: "u1", AccessToken: "t"}.IsUsable())

	id := Identity{}.WithDefaults()
	assert.Equal(t, DefaultClientName, id.ClientName)
	assert.Equal(t, DefaultClientVersion, id.ClientVersion)
	assert.Equal(t, DefaultDeviceID, id.DeviceID)

	kept := Identity{DeviceID: "mine", ClientName: "jfe"}.WithDefaults()
	assert.Equal(t, "mine", kept.DeviceID)
	assert.Equal(t, "jfe", kept.ClientName)
}

func TestValidItemID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{name: "guid", id: "3f2504e0-4f89-11d3-9a0c-0305e82c3301", want: true},
		{name: "hex32", id: "0123456789abcdef0123456789ABCDEF", want: true},
		{name: "empty", id: "", want: false},
		{name: "slash", id: "abc/def", want: false},
		{name: "space", id: "abc def", want: false},
		{name: "colon", id: "abc:def", want: false},
		{name: "too long", id: fmt.Sprintf("%0129d", 0), want: false},
		{name: "short hex", id: "abcdef", want: false},
		{name: "user agent base64", id: "TW96aWxsYS81LjAgKFgxMTsgTGludXggeDg2XzY0KQ==", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidItemID(tt.id))
		})
	}
}

func TestQualityFromStream(t *testing.T) {
	tests := []struct {
		name   string
		stream MediaStream
		want   string
	}{
		{name: "uhd hdr hevc", stream: MediaStream{Height: 2160, Width: 3840, VideoRangeType: "HDR10", Codec: "HEVC"}, want: "fhd/hdr/h265"},
		{name: "4k by height", stream: MediaStream{Height: 3840, Width: 2160, Codec: "h264"}, want: "4k/sdr/h264"},
		{name: "wide fhd", stream: MediaStream{Height: 1080, Width: 2560}, want: "fhd/sdr"},
		{name: "fhd", stream: MediaStream{Height: 1080, Width: 1920, Codec: "vp9"}, want: "fhd/sdr/vp9"},
		{name: "hd", stream: MediaStream{Height: 720, Width: 1280, Codec: "mpeg4"}, want: "hd/sdr/mpeg"},
		{name: "sd", stream: MediaStream{Height: 480, Width: 640, VideoRangeType: "SDR", Codec: "av1"}, want: "sd/sdr"},
		{name: "dolby vision counts as hdr", stream: MediaStream{Width: 1920, VideoRangeType: "DOVIWithHDR10"}, want: "fhd/hdr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QualityFromStream(tt.stream).String())
		})
	}
}

func TestParseQualityRoundTrip(t *testing.T) {
	q, err := ParseQuality("4k/hdr/h265")
	require.NoError(t, err)
	assert.Equal(t, Quality{Resolution: "4k", Range: "hdr", Codec: "h265"}, q)
	assert.Equal(t, []string{
		QualityIconBase + "4k.svg",
		QualityIconBase + "hdr.svg",
		QualityIconBase + "h265.svg",
	}, q.Icons())

	_, err = ParseQuality("4k")
	require.Error(t, err)
	_, err = ParseQuality("a/b/c/d")
	require.Error(t, err)
}

func TestItemVideoStream(t *testing.T) {
	it := Item{MediaStreams: []MediaStream{{Type: "Audio"}, {Type: "Video", Width: 1920}}}
	s, ok := it.VideoStream()
	require.True(t, ok)
	assert.Equal(t, 1920, s.Width)

	_, ok = Item{}.VideoStream()
	assert.False(t, ok)
}

func TestGenresOf(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Crime"}, GenresOf(Item{
		GenreItems: []NamedRef{{Name: "Drama"}, {Name: ""}, {Name: "Crime"}},
		Genres:     []string{"ignored"},
	}))
	assert.Equal(t, []string{"Comedy"}, GenresOf(Item{Genres: []string{"Comedy"}}))
	assert.Equal(t, []string{"Action", "Sci-Fi"}, GenresOf(Item{Tags: []string{"Action", "4K", "Sci-Fi"}}))
	assert.Empty(t, GenresOf(Item{}))
}

func TestIsSilent(t *testing.T) {
	assert.True(t, IsSilent(fmt.Errorf("get item: %w", ErrAborted)))
	assert.True(t, IsSilent(ErrAuthNotReady))
	assert.False(t, IsSilent(ErrForbidden))
	assert.False(t, IsSilent(errors.New("boom")))

	var httpErr *HTTPError
	err := fmt.Errorf("wrap: %w", &HTTPError{Status: 500, Message: "Internal: exploded"})
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.Status)
	assert.Contains(t, err.Error(), "Internal: exploded")
}
