package stimulus

import (
	"context"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/computational-psychology/ecvp2025-mlds-mlcm-tutorial/design"
)

func TestWhiteGeometry(t *testing.T) {
	p := DefaultParams()
	im, err := White(p, 0.42, 0.67, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 544-7, im.W)
	assert.Equal(t, 408+30, im.H)

	// bars alternate black and white, 30 px wide, starting black
	assert.Equal(t, 0.0, im.At(0, 0))
	assert.Equal(t, 1.0, im.At(30, 0))
	assert.Equal(t, 0.0, im.At(60, 0))

	mid := 408 / 2
	// left target on bar 6 (black context), right target on bar 13 (white context)
	assert.Equal(t, 0.42, im.At(6*30+1, mid))
	assert.Equal(t, 0.67, im.At(13*30+1, mid))
	assert.Equal(t, 0.0, im.At(6*30+1, 10), "target does not span the full bar")
	assert.Equal(t, 0.0, im.At(12*30+1, mid), "bar 12 stays black when the right target sits on white")

	// target height is 5 deg
	rows := 0
	for y := 0; y < 408; y++ {
		if im.At(6*30+1, y) == 0.42 {
			rows++
		}
	}
	assert.Equal(t, 170, rows)
}

func TestWhiteMarkers(t *testing.T) {
	p := DefaultParams()
	im, err := White(p, 0.5, 0.5, 1, 0)
	require.NoError(t, err)

	strip := 408
	assert.Equal(t, 0.5, im.At(7*30+1, strip+5), "top of strip is background")
	assert.Equal(t, 0.0, im.At(7*30+1, strip+25), "marker under left target")
	assert.Equal(t, 0.0, im.At(12*30+1, strip+25), "marker under right target")
	assert.Equal(t, 0.5, im.At(6*30+1, strip+25), "no marker elsewhere")
}

func TestWhiteErrors(t *testing.T) {
	p := DefaultParams()
	p.Bars = 1
	_, err := White(p, 0.5, 0.5, 0, 0)
	assert.Error(t, err)

	p = DefaultParams()
	p.RightBar = 40
	_, err = White(p, 0.5, 0.5, 0, 0)
	assert.ErrorContains(t, err, "outside grating")

	p = DefaultParams()
	p.CropColumns = 1000
	_, err = White(p, 0.5, 0.5, 0, 0)
	assert.Error(t, err)
}

func TestGrayConversion(t *testing.T) {
	im := NewImage(3, 1, 0)
	im.Set(1, 0, 0.5)
	im.Set(2, 0, 1.2)
	g := im.Gray()
	assert.Equal(t, []uint8{0, 128, 255}, g.Pix)
}

func TestDotCloudRespectsMinimumDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pts, err := DotCloud(30, 0.125, 10000, rng)
	require.NoError(t, err)
	require.Len(t, pts, 30)
	for i := range pts {
		assert.LessOrEqual(t, math.Hypot(pts[i].X, pts[i].Y), 1.0)
		for j := i + 1; j < len(pts); j++ {
			assert.Greater(t, math.Hypot(pts[i].X-pts[j].X, pts[i].Y-pts[j].Y), 0.125)
		}
	}
}

func TestDotCloudGivesUp(t *testing.T) {
	_, err := DotCloud(10, 3, 50, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrPlacement)

	_, err = DotCloud(0, 0.1, 50, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestDotsRendersBlackDiscs(t *testing.T) {
	p := DefaultDotParams()
	im := Dots(p, []Point{{0, 0}})
	assert.Equal(t, 0.0, im.At(200, 200))
	assert.Equal(t, 0.5, im.At(0, 0))
	assert.Equal(t, 0.5, im.At(200, 200+10))
}

func smallWhites() Params {
	p := DefaultParams()
	p.PPD = 5
	p.Workers = 2
	return p
}

func TestGenerateWhitesWritesBothOrders(t *testing.T) {
	dir := t.TempDir()
	dp := design.DefaultParams()
	dp.LumSteps = 2
	dp.Reduced = true

	paths, err := GenerateWhites(context.Background(), dir, dp, smallWhites(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, paths, 12)

	left := design.Stimulus{Lum: 0.25, Context: 0}
	right := design.Stimulus{Lum: 0.75, Context: 1}
	for _, name := range []string{design.WhiteName(left, right), design.WhiteName(right, left)} {
		f, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 80-7, img.Bounds().Dx())
	}
}

func TestGenerateWhitesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := GenerateWhites(ctx, t.TempDir(), design.DefaultParams(), smallWhites(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateDots(t *testing.T) {
	dir := t.TempDir()
	mp := design.DefaultMLDSParams()
	mp.Levels = []int{5, 10}
	mp.Realizations = 2
	p := DefaultDotParams()
	p.Size = 100

	paths, err := GenerateDots(context.Background(), dir, mp, p, 2, rand.New(rand.NewSource(3)), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "s_5_r_1.png"),
		filepath.Join(dir, "s_5_r_2.png"),
		filepath.Join(dir, "s_10_r_1.png"),
		filepath.Join(dir, "s_10_r_2.png"),
	}, paths)
	for _, path := range paths {
		assert.FileExists(t, path)
	}

	mp.Realizations = 0
	_, err = GenerateDots(context.Background(), dir, mp, p, 2, rand.New(rand.NewSource(3)), nil)
	assert.Error(t, err)
}
