package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionNormalize(t *testing.T) {
	t.Run("option value defaults to text", func(t *testing.T) {
		q := Question{Text: " Favourite colour ", Type: SingleSelect, Options: []Option{
			{Text: "Red"}, {Text: "Blue", Value: "b"}, {Text: " "},
		}}
		require.NoError(t, q.Normalize())
		assert.Equal(t, "Favourite colour", q.Text)
		assert.Equal(t, []Option{
			{Text: "Red", Value: "Red", Position: 1},
			{Text: "Blue", Value: "b", Position: 2},
		}, q.Options)
	})

	tests := []struct {
		name string
		q    Question
		err  error
	}{
		{"empty text", Question{Type: TextInput}, ErrQuestionText},
		{"bad type", Question{Text: "x", Type: "slider"}, ErrQuestionType},
		{"select without options", Question{Text: "x", Type: MultiSelect}, ErrOptionsRequired},
		{"text with options", Question{Text: "x", Type: NumericInput, Options: []Option{{Text: "1"}}}, ErrOptionsNotUsed},
		{"duplicate values", Question{Text: "x", Type: ImageSelect, Options: []Option{{Text: "a"}, {Text: "A", Value: "a"}}}, ErrDuplicateOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.q.Normalize(), tt.err)
		})
	}

	t.Run("broken logic", func(t *testing.T) {
		q := Question{Text: "x", Type: TextInput, Logic: Logic{ShowIf: "q1 == "}}
		assert.ErrorContains(t, q.Normalize(), "show_if")
	})
}

func TestLogicVisible(t *testing.T) {
	l := Logic{ShowIf: `q1 == "red" && q2 > 17`}
	assert.True(t, l.Visible(map[string]any{"q1": "red", "q2": 18}))
	assert.False(t, l.Visible(map[string]any{"q1": "blue", "q2": 18}))
	assert.False(t, l.Visible(map[string]any{}))
	assert.True(t, Logic{}.Visible(nil))

	multi := Logic{ShowIf: `"cats" in q3`}
	assert.True(t, multi.Visible(map[string]any{"q3": []string{"dogs", "cats"}}))
}

func TestFormStatusTransitions(t *testing.T) {
	assert.True(t, StatusDraft.CanBecome(StatusReview))
	assert.True(t, StatusReview.CanBecome(StatusPublished))
	assert.True(t, StatusPublished.CanBecome(StatusArchived))
	assert.True(t, StatusArchived.CanBecome(StatusDraft))
	assert.False(t, StatusArchived.CanBecome(StatusPublished))
	assert.False(t, StatusDraft.CanBecome(StatusArchived))
	assert.False(t, FormStatus("deleted").Valid())
}

func TestSettingsIdentityDefault(t *testing.T) {
	var s Settings
	require.NoError(t, s.Scan(`{"unique_entries": true}`))
	assert.True(t, s.UniqueEntries)
	assert.True(t, s.IdentityEnabled())

	require.NoError(t, s.Scan([]byte(`{"enable_identity": false}`)))
	assert.False(t, s.UniqueEntries)
	assert.False(t, s.IdentityEnabled())
}

func TestAttachmentDisplayValue(t *testing.T) {
	a := Attachment{
		DisplayColumn: "Code",
		Columns:       []Column{{Name: "Wilayah"}, {Name: "Nama Lengkap"}, {Name: "Code"}},
	}

	v, ok := a.DisplayValue(Data{"Code": "A-1", "Nama Lengkap": "Budi"})
	assert.True(t, ok)
	assert.Equal(t, "A-1", v)

	v, ok = a.DisplayValue(Data{"Nama Lengkap": "Budi"})
	assert.True(t, ok)
	assert.Equal(t, "Budi", v)

	_, ok = a.DisplayValue(Data{"Wilayah": "North"})
	assert.False(t, ok)

	a.HiddenColumns = StringList{"Code", "Nama Lengkap"}
	_, ok = a.DisplayValue(Data{"Code": "A-1", "Nama Lengkap": "Budi"})
	assert.False(t, ok, "hidden columns never label a record")
}

func TestAttachmentVisibleColumns(t *testing.T) {
	a := Attachment{
		HiddenColumns: StringList{"InternalNotes"},
		Columns:       []Column{{Name: "Name"}, {Name: "InternalNotes"}, {Name: "Region"}},
	}
	var names []string
	for _, c := range a.VisibleColumns() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Name", "Region"}, names)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "42", Stringify(float64(42)))
	assert.Equal(t, "4.5", Stringify(4.5))
	assert.Equal(t, `["a","b, c"]`, Stringify([]any{"a", "b, c"}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}

func TestResponseIdentity(t *testing.T) {
	id := int64(3)
	assert.Equal(t, NoIdentity, Response{}.Identity())
	assert.Equal(t, ExistingRecord, Response{RecordID: &id}.Identity())
	assert.Equal(t, PendingIdentity, Response{IsNewIdentity: true}.Identity())
}
