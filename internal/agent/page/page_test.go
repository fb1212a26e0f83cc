package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listing = `<!doctype html>
<html><head><title>Hack</title><style>body{color:red}</style></head>
<body>
<nav>Home About</nav>
<main>
  <h1>Build &amp; Ship</h1>
  <p>Create   an <b>AI agent</b> in 48 hours.</p>
  <script>alert("x")</script>
</main>
<footer>Copyright</footer>
</body></html>`

func TestReader_ReadText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listing))
	}))
	defer srv.Close()

	text, err := NewReader(srv.Client(), WithUserAgent("test-agent")).ReadText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, text, "Build & Ship")
	assert.Contains(t, text, "Create an AI agent in 48 hours.")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "Home About")
	assert.NotContains(t, text, "Copyright")
}

func TestReader_DropsChromeAndSeparatesBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<body><nav>MENU</nav><header>HDR</header>` +
			`<div>BODYTEXT</div><div>MORE</div><ul><li>one</li><li>two</li></ul>` +
			`<footer>FOOT</footer><form><label>FORMX</label></form></body>`))
	}))
	defer srv.Close()

	text, err := NewReader(srv.Client()).ReadText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "BODYTEXT MORE one two", text)
}

func TestReader_MaxLen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>abcdefghij</p>"))
	}))
	defer srv.Close()

	text, err := NewReader(srv.Client(), WithMaxLen(4)).ReadText(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "abcd", text)
}

func TestReader_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewReader(srv.Client()).ReadText(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status 403")
}
