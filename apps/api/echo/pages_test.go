package echoapi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcci/portal/core"
)

func Test_newPageRenderer(t *testing.T) {
	conf := &core.Config{AppName: "KCCI Portal", FrontendBaseURL: "http://front.test"}
	r, err := newPageRenderer(conf)
	require.NoError(t, err)

	for _, name := range []string{"home", "about", "members"} {
		assert.Contains(t, r.templates, name)
	}
	assert.NotContains(t, r.templates, "_layout")

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, "about", nil, nil))
	assert.Contains(t, buf.String(), "KCCI Portal")

	assert.EqualError(t, r.Render(&buf, "contact", nil, nil), `page template "contact" not found`)
}
