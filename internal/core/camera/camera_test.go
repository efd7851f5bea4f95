package camera

import (
	"testing"

	"github.com/ixugo/goddd/pkg/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePurpose(t *testing.T) {
	for _, p := range purposes {
		got, err := ParsePurpose(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePurpose("face")
	assert.Error(t, err)
	_, err = ParsePurpose("")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, DirectionEntry, d)

	d, err = ParseDirection("exit")
	require.NoError(t, err)
	assert.Equal(t, DirectionExit, d)

	_, err = ParseDirection("both")
	assert.Error(t, err)
}

func TestTripwireValidate(t *testing.T) {
	ok := Tripwire{X1: 0, Y1: 0.5, X2: 1, Y2: 0.5, Enabled: true}
	assert.NoError(t, ok.Validate())

	outside := Tripwire{X1: -0.1, Y1: 0, X2: 1, Y2: 1}
	assert.Error(t, outside.Validate())

	point := Tripwire{X1: 0.5, Y1: 0.5, X2: 0.5, Y2: 0.5}
	assert.Error(t, point.Validate())

	badDir := Tripwire{X1: 0, Y1: 0, X2: 1, Y2: 1, CrossDirection: "sideways"}
	assert.Error(t, badDir.Validate())
}

func TestFindCameraInputPager(t *testing.T) {
	in := FindCameraInput{}
	p := in.Pager()
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 20, p.Limit())

	in = FindCameraInput{PagerFilter: web.PagerFilter{Page: 3, Size: 5000}}
	p = in.Pager()
	assert.Equal(t, 2000, p.Offset())
	assert.Equal(t, 1000, p.Limit())
	// 原始入参不受影响
	assert.Equal(t, 5000, in.Size)
}
