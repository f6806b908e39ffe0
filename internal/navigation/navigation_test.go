package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Navigate(ScreenDetail, map[string]any{ParamPointID: int64(1)})
	r.GoBack()

	assert.Equal(t, []Request{
		{Screen: ScreenDetail, Params: map[string]any{ParamPointID: int64(1)}},
		{Back: true},
	}, r.Requests())
}

func TestFuncNilSafe(t *testing.T) {
	var f Func
	f.GoBack()
	f.Navigate(ScreenDetail, nil)

	var got string
	f.Forward = func(screen string, _ map[string]any) { got = screen }
	f.Navigate(ScreenDetail, nil)
	assert.Equal(t, ScreenDetail, got)
}
