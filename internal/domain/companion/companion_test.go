package companion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"road.jpg", "road.png"},
		{"ROAD.JPEG", "ROAD.png"},
		{"Road.JpG", "Road.png"},
		{"road.png", "road.png"},
		{"road", "road"},
		{"road.tiff", "road.tiff"},
		{"road.heic", "road.heic"},
		{"road.jpg.jpeg", "road.jpg.png"},
		{"jpg", "jpg"},
		{".jpg", ".png"},
	}
	for _, tt := range tests {
		ref := Derive(tt.in)
		assert.Equal(t, tt.in, ref.OriginalName)
		assert.Equal(t, tt.want, ref.DerivedName, "Derive(%q)", tt.in)
	}
}

func newLocator(t *testing.T) (*Locator, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "im-r"), 0o755))
	loc, err := NewLocator(Options{Root: root, Subdir: "im-r", URLPrefix: "/config-folder"})
	require.NoError(t, err)
	return loc, filepath.Join(root, "im-r")
}

func TestLocate_Found(t *testing.T) {
	loc, dir := newLocator(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "street1.png"), []byte("png-bytes"), 0o644))

	ref, data, err := loc.Locate(context.Background(), "street1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "street1.png", ref.DerivedName)
	assert.Equal(t, []byte("png-bytes"), data)
	assert.Equal(t, "/config-folder/im-r/street1.png", loc.URL(ref))
}

func TestLocate_Missing(t *testing.T) {
	loc, _ := newLocator(t)

	ref, data, err := loc.Locate(context.Background(), "missing.jpg")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.Equal(t, ArtifactNotFoundMessage, ErrArtifactNotFound.Error())
	assert.Nil(t, data)
	assert.Equal(t, "missing.png", ref.DerivedName)
}

func TestLocate_PassThroughName(t *testing.T) {
	loc, dir := newLocator(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.tiff"), []byte("x"), 0o644))

	ref, _, err := loc.Locate(context.Background(), "scan.tiff")
	require.NoError(t, err)
	assert.Equal(t, "scan.tiff", ref.DerivedName)
}

func TestLocate_Directory(t *testing.T) {
	loc, dir := newLocator(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "folder.png"), 0o755))

	_, _, err := loc.Locate(context.Background(), "folder.jpg")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestLocate_Traversal(t *testing.T) {
	loc, dir := newLocator(t)
	outside := filepath.Join(filepath.Dir(dir), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	_, data, err := loc.Locate(context.Background(), "../secret.jpg")
	assert.True(t, errors.Is(err, ErrArtifactNotFound))
	assert.Nil(t, data)
}

func TestLocate_EmptyName(t *testing.T) {
	loc, _ := newLocator(t)
	_, _, err := loc.Locate(context.Background(), "  ")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrArtifactNotFound))
}

func TestLocate_CancelledContext(t *testing.T) {
	loc, _ := newLocator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := loc.Locate(ctx, "street1.jpg")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewLocator_RequiresRoot(t *testing.T) {
	_, err := NewLocator(Options{})
	assert.Error(t, err)
}

func TestURL_EscapesName(t *testing.T) {
	loc, _ := newLocator(t)
	assert.Equal(t, "/config-folder/im-r/my%20road.png", loc.URL(Derive("my road.jpg")))
}
