package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func formattedInput(t *testing.T) Data {
	t.Helper()
	d, err := ValidateData(validInput())
	require.NoError(t, err)
	return WithReportDates(FormatData(d), march15, "INV24031501")
}

func TestRenderer_Default(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	html, err := r.Render(formattedInput(t))

	require.NoError(t, err)
	assert.Contains(t, html, `<meta charset="UTF-8">`)
	assert.Contains(t, html, "Asha Rao")
	assert.Contains(t, html, "₹10,00,000")
	assert.Contains(t, html, "12.5%")
	assert.Contains(t, html, "INV24031501")
	assert.Contains(t, html, "March 2024")
	assert.Contains(t, html, "15 March 2024")
}

func TestRenderer_EscapesValues(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	d := formattedInput(t)
	d[FieldInvestorName] = "<script>x</script>"

	html, err := r.Render(d)

	require.NoError(t, err)
	assert.NotContains(t, html, "<script>x</script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestRenderer_MissingFieldIsTemplateError(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)
	d := formattedInput(t)
	delete(d, FieldReportPeriod)

	_, err = r.Render(d)

	var tmplErr *TemplateError
	require.ErrorAs(t, err, &tmplErr)
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestRenderer_FromDirectory(t *testing.T) {
	// GIVEN: A template directory overriding the default
	dir := t.TempDir()
	custom := `<p>{{.investor_name}} {{.report_id}}</p>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateName), []byte(custom), 0o644))

	r, err := NewRenderer(dir)
	require.NoError(t, err)

	html, err := r.Render(formattedInput(t))
	require.NoError(t, err)
	assert.Equal(t, "<p>Asha Rao INV24031501</p>", html)
}

func TestRenderer_ParseError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TemplateName), []byte(`{{.broken`), 0o644))

	_, err := NewRenderer(dir)
	assert.ErrorIs(t, err, ErrTemplate)

	_, err = NewRendererFromString(`{{if}}`)
	assert.ErrorIs(t, err, ErrTemplate)
}

func TestWithReportDates(t *testing.T) {
	in := Data{FieldInvestorName: "Asha"}

	out := WithReportDates(in, march15, "INV24031502")

	assert.Equal(t, "15 March 2024", out[FieldGeneratedDate])
	assert.Equal(t, "March 2024", out[FieldReportPeriod])
	assert.Equal(t, "INV24031502", out[FieldReportID])
	assert.NotContains(t, in, FieldReportID)
}
