package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

type testFile struct {
	name string
	body string
	dir  bool
}

func buildTar(t *testing.T, files []testFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		header := &tar.Header{Name: f.name, Mode: 0o644, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if f.dir {
			header = &tar.Header{Name: f.name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(header))
		if !f.dir {
			_, err := tw.Write([]byte(f.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestReadMembersTarGz(t *testing.T) {
	raw := buildTar(t, []testFile{
		{name: "nl/", dir: true},
		{name: "nl/nl-20050617-062.xml", body: "<html>aml</html>"},
		{name: "nl/._nl-20050617-062.xml", body: "resource fork"},
		{name: "nl/nl-19880429-021.xml", body: "<html>ferie</html>"},
	})
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write(raw)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	members, err := NewReader(Options{}).ReadMembers(context.Background(), "lover.tar.gz", &gz)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "nl/nl-20050617-062.xml", members[0].Name)
	assert.Equal(t, "<html>ferie</html>", string(members[1].Data))
}

func TestReadMembersZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []testFile{
		{name: "sf/sf-20110812-0841.xml", body: "<html>forskrift</html>"},
		{name: "__MACOSX/sf/x.xml", body: "junk"},
	} {
		fw, err := zw.Create(f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	members, err := NewReader(Options{}).ReadMembers(context.Background(), "forskrifter.zip", &buf)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "sf/sf-20110812-0841.xml", members[0].Name)
}

func TestReadMembersRejectsOversizedMember(t *testing.T) {
	raw := buildTar(t, []testFile{{name: "big.xml", body: "0123456789"}})
	_, err := NewReader(Options{MaxMemberBytes: 5}).ReadMembers(context.Background(), "a.tar", bytes.NewReader(raw))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
}

func TestReadMembersUnsupportedFormat(t *testing.T) {
	_, err := NewReader(Options{}).ReadMembers(context.Background(), "a.rar", bytes.NewReader(nil))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
