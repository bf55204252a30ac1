package codes

import (
	"testing"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/stretchr/testify/require"
)

func TestFamiliesKeepTheirOwnSuccess(t *testing.T) {
	require.Equal(t, uint32(0), Detector.Success())
	require.Equal(t, uint32(1), Table.Success())
	require.Equal(t, uint32(40), Detector.ServerConnect())
	require.Equal(t, uint32(0), Table.ServerConnect())

	require.Same(t, Table, For(models.Table))
	require.Same(t, Detector, For(models.Detector))
}

func TestNames(t *testing.T) {
	require.Equal(t, "acquire_image", Detector.FunctionName(DetAcquireImage))
	require.Equal(t, "FUNC_NOTIMPL", Detector.StatusName(DetFuncNotImpl))
	require.Equal(t, "OK", Table.StatusName(TblOK))
	require.Equal(t, "ERROR", Table.StatusName(TblError))
	require.Equal(t, Unknown, Table.StatusName(77))
	require.Equal(t, Unknown, Detector.FunctionName(9999))
}

func TestParseFunction(t *testing.T) {
	code, err := Table.ParseFunction("HOME")
	require.NoError(t, err)
	require.Equal(t, TblHome, code)

	code, err = Table.ParseFunction("9")
	require.NoError(t, err)
	require.Equal(t, TblHome, code)

	_, err = Table.ParseFunction("9999")
	require.ErrorContains(t, err, "unknown table function")

	names := Detector.FunctionNames()
	require.Contains(t, names, "acquire_image")
	code, ok := Detector.Function(names[0])
	require.True(t, ok)
	require.Equal(t, names[0], Detector.FunctionName(code))
}
