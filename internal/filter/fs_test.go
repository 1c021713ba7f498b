package filter

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.png"), []byte("PNGDATA"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>assets</h1>"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
	return dir
}

func TestAssetsOrIndex(t *testing.T) {
	dir := assetsDir(t)
	f := Or(
		ToReply(And(Path("assets"), Dir(dir))),
		ToReply(Map0(PathEnd(), func() string { return "Index page" })),
	)

	r := newRequest("GET", "/")
	tup, rej := Evaluate(f, r)
	require.Nil(t, rej)
	assert.Equal(t, "Index page", writeReply(tup, r).Body.String())

	r = newRequest("GET", "/assets/x.png")
	tup, rej = Evaluate(f, r)
	require.Nil(t, rej)
	require.IsType(t, &FileReply{}, Value[Reply](tup, 0))
	rec := writeReply(tup, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PNGDATA", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	_, rej = Evaluate(f, newRequest("GET", "/unknown"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
}

func TestDir_Index(t *testing.T) {
	dir := assetsDir(t)

	r := newRequest("GET", "/")
	tup, rej := Evaluate(Dir(dir), r)
	require.Nil(t, rej)
	assert.Equal(t, filepath.Join(dir, "index.html"), Value[*FileReply](tup, 0).Path())

	_, rej = Evaluate(Dir(dir), newRequest("GET", "/empty"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
}

func TestDir_RejectsTraversal(t *testing.T) {
	dir := assetsDir(t)
	_, rej := Evaluate(Dir(filepath.Join(dir, "empty")), newRequest("GET", "/../x.png"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
}

func TestDir_MethodMismatch(t *testing.T) {
	dir := assetsDir(t)
	f := Or(
		ToReply(And(Path("assets"), Dir(dir))),
		ToReply(Map0(PathEnd(), func() string { return "Index page" })),
	)

	_, rej := Evaluate(f, newRequest("POST", "/assets/x.png"))
	require.NotNil(t, rej)
	assert.Equal(t, KindMethodMismatch, rej.Kind)

	_, rej = Evaluate(Dir(dir), newRequest("HEAD", "/x.png"))
	assert.Nil(t, rej)
}

func TestDir_ConsumesPath(t *testing.T) {
	dir := assetsDir(t)
	_, rej := Evaluate(AndAll(Dir(dir), PathEnd()), newRequest("GET", "/x.png"))
	assert.Nil(t, rej)
}

func TestFile(t *testing.T) {
	dir := assetsDir(t)
	f := File(filepath.Join(dir, "x.png"))

	tup, rej := Evaluate(f, newRequest("GET", "/whatever"))
	require.Nil(t, rej)
	assert.Equal(t, filepath.Join(dir, "x.png"), Value[*FileReply](tup, 0).Path())

	_, rej = Evaluate(File(filepath.Join(dir, "missing")), newRequest("GET", "/"))
	require.NotNil(t, rej)
	assert.Equal(t, KindNotFound, rej.Kind)
	assert.ErrorIs(t, rej, os.ErrNotExist)
}

func TestFileReply_Removed(t *testing.T) {
	dir := assetsDir(t)
	p := filepath.Join(dir, "x.png")
	r := newRequest("GET", "/")
	tup, rej := Evaluate(File(p), r)
	require.Nil(t, rej)

	require.NoError(t, os.Remove(p))
	rec := writeReply(Tuple{Value[*FileReply](tup, 0)}, r)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
