package cleaner

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractMetadata(t *testing.T) {
	page := `<html><head>
<title>  Fedora
  Linux </title>
<meta name="Description" content=" The leading-edge distro. ">
<meta property="og:description" content="og text">
</head><body></body></html>`

	meta, err := ExtractMetadata(page, "https://fedoraproject.org/")
	require.NoError(t, err)
	assert.Equal(t, "Fedora Linux", meta.Title)
	assert.Equal(t, "The leading-edge distro.", meta.Description)
}

func TestExtractMetadata_OpenGraphFallback(t *testing.T) {
	page := `<html><head><title>T</title><meta property="og:description" content="og text"></head></html>`

	meta, err := ExtractMetadata(page, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "og text", meta.Description)
}

func TestExtractMetadata_ReadabilityFallback(t *testing.T) {
	para := strings.Repeat("Fedora is a community maintained operating system with many packages. ", 12)
	page := `<html><head><title>Article</title></head><body><article><h1>Article</h1><p>` +
		para + `</p><p>` + para + `</p></article></body></html>`

	meta, err := ExtractMetadata(page, "https://example.com/article")
	require.NoError(t, err)
	assert.Equal(t, "Article", meta.Title)
	assert.Contains(t, meta.Description, "Fedora is a community")
}

func TestExtractMetadata_Empty(t *testing.T) {
	meta, err := ExtractMetadata("<html><body></body></html>", "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, meta.Title)
	assert.Empty(t, meta.Description)
}
