package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownPlaceholder(t *testing.T) {
	_, err := New("greet", "Hello {{.name}} from {{.clinic}}", "name")
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)

	_, err = New("greet", "{{if .vip}}Hi VIP{{end}} {{.name}}", "name")
	assert.ErrorIs(t, err, ErrUnknownPlaceholder, "fields inside control blocks are checked too")

	_, err = New("greet", "Hello {{.name}", "name")
	assert.Error(t, err)

	_, err = New("greet", "Hello", "name", "name")
	assert.Error(t, err)

	_, err = New("", "Hello", "name")
	assert.Error(t, err)
}

func TestRenderAndParams(t *testing.T) {
	tmpl, err := New("greet", "Hello {{.name}} from {{.clinic}}", "clinic", "name")
	require.NoError(t, err)
	assert.Equal(t, "greet", tmpl.Name())
	assert.Equal(t, []string{"clinic", "name"}, tmpl.Placeholders())

	out, err := tmpl.Render(Values{"name": "Ana", "clinic": "Sorriso"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ana from Sorriso", out)

	params, err := tmpl.Params(Values{"name": "Ana", "clinic": "Sorriso"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sorriso", "Ana"}, params)
}

func TestRenderRejectsBadValues(t *testing.T) {
	tmpl := MustNew("greet", "Hello {{.name}}", "name")

	_, err := tmpl.Render(Values{"name": "Ana", "extra": "x"})
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)

	_, err = tmpl.Render(Values{"name": "  "})
	assert.ErrorIs(t, err, ErrMissingValue)

	_, err = tmpl.Params(Values{})
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew("bad", "{{.unknown}}") })
}

func TestCatalog(t *testing.T) {
	welcome, err := Welcome.Params(WelcomeParams{FirstName: "Ana", AgentName: "Sofia", BusinessName: "Sorriso"}.Values())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Sofia", "Sorriso"}, welcome)

	earlier, err := EarlierSlots.Params(EarlierSlotsParams{
		FirstName:    "Ana",
		FirstSlot:    "Mon, Nov 17 at 9:00 AM",
		SecondSlot:   "Tue, Nov 18 at 9:00 AM",
		PromisedDate: "Thu, Nov 20",
	}.Values())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Mon, Nov 17 at 9:00 AM", "Tue, Nov 18 at 9:00 AM", "Thu, Nov 20"}, earlier)

	text, err := ChannelPreference.Render(ChannelPreferenceParams{FirstName: "Ana", BusinessName: "Sorriso"}.Values())
	require.NoError(t, err)
	assert.Contains(t, text, "Hi Ana, this is Sorriso.")
}
