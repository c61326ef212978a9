// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "Authorization", "  Bearer abc123  \n")
				writeFile(t, dir, "X-Api-Key", "k_xyz789")
				return dir
			},
			want: map[string]string{
				"Authorization": "Bearer abc123",
				"X-Api-Key":     "k_xyz789",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "Authorization", "Basic dXNlcjpwdw==")
				writeFile(t, dir, "Empty", "")
				writeFile(t, dir, "Whitespace", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"Authorization": "Basic dXNlcjpwdw==",
			},
		},
		{
			name: "skips dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden", "secret")
				writeFile(t, dir, "Cookie", "session=1")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"Cookie": "session=1",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
		{
			name: "rejects a file in place of the directory",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "plain", "x")
				return filepath.Join(dir, "plain")
			},
			errMsg: "reading secrets directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "Authorization", "Bearer ok")

	badPath := filepath.Join(dir, "X-Bad")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer ok", got["Authorization"])
	_, hasBad := got["X-Bad"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "authorization", "Bearer abc\n")
	writeFile(t, dir, "x-mirror-token", "t0k")

	h, err := Headers(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, http.Header{
		"Authorization":  {"Bearer abc"},
		"X-Mirror-Token": {"t0k"},
	}, h)
}

func TestHeadersRejectsBadEntries(t *testing.T) {
	t.Run("invalid name", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "token (old)", "x")
		_, err := Headers(dir, nil)
		assert.ErrorContains(t, err, "not a valid header name")
	})

	t.Run("multi-line value", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "Authorization", "Bearer a\nX-Injected: 1")
		_, err := Headers(dir, nil)
		assert.ErrorContains(t, err, "multiple lines")
	})
}

func TestHeadersMissingDirectory(t *testing.T) {
	h, err := Headers(filepath.Join(t.TempDir(), "none"), nil)
	require.NoError(t, err)
	assert.Empty(t, h)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
