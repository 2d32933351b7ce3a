package api

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartFileHeader(t *testing.T, name string, content []byte, maxMemory int64) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(maxMemory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func TestReadUploadFileDrainsWholePart(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789abcdef"), 8192) // 128 KiB
	wantHash := md5.Sum(content)

	// in-memory and disk-spilled parts must both round-trip intact
	for name, maxMemory := range map[string]int64{"memory": 1 << 20, "disk": 1} {
		t.Run(name, func(t *testing.T) {
			fh := multipartFileHeader(t, "clip.bin", content, maxMemory)
			require.Equal(t, int64(len(content)), fh.Size)

			data, err := readUploadFile(fh)
			require.NoError(t, err)
			require.Len(t, data, len(content), "truncated reads would corrupt the stored object")
			gotHash := md5.Sum(data)
			assert.Equal(t, hex.EncodeToString(wantHash[:]), hex.EncodeToString(gotHash[:]),
				"content hash must cover every byte")
		})
	}
}
