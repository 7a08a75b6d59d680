package clientimport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"apartment-locator/internal/config"
	"apartment-locator/internal/fields"
)

func newTestImporter(maxRows int) *Importer {
	return NewImporter(config.ImportConfig{MaxRows: maxRows, FuzzyDistance: 2}, zap.NewNop())
}

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "e_mail_address", normalize(" E-Mail Address "))
	assert.Equal(t, "first_name", normalize("First  Name"))
	assert.Equal(t, "budget_max", normalize("Budget (Max)"))
	assert.Equal(t, "", normalize(" -- "))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("email", "email"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
	assert.Equal(t, 2, levenshtein("frist_name", "first_name"))
	assert.Equal(t, 5, levenshtein("", "phone"))
}

func TestMatchHeaders(t *testing.T) {
	columns, unmatched := MatchHeaders([]string{
		"Frist Name", "Surname", "E-mail", "Phnoe", "Max Budget", "Beds", "Favorite Color", "",
	}, 2)

	assert.Equal(t, fields.ClientFirstName, columns[0])
	assert.Equal(t, fields.ClientLastName, columns[1])
	assert.Equal(t, fields.ClientEmail, columns[2])
	assert.Equal(t, fields.ClientPhone, columns[3])
	assert.Equal(t, fields.ClientBudgetMax, columns[4])
	assert.Equal(t, fields.ClientBedrooms, columns[5])
	assert.Equal(t, []string{"Favorite Color"}, unmatched)
}

func TestMatchHeaders_ExactBeatsFuzzy(t *testing.T) {
	// "emial" would fuzzy-match email, but the exact column claims it first
	columns, unmatched := MatchHeaders([]string{"emial", "Email"}, 2)
	assert.Equal(t, fields.ClientEmail, columns[1])
	_, ok := columns[0]
	assert.False(t, ok)
	assert.Equal(t, []string{"emial"}, unmatched)
}

func TestMatchHeaders_FuzzyDisabled(t *testing.T) {
	columns, unmatched := MatchHeaders([]string{"Frist Name", "email"}, 0)
	assert.Len(t, columns, 1)
	assert.Equal(t, []string{"Frist Name"}, unmatched)
}

func TestParse_XLSX(t *testing.T) {
	buf := buildWorkbook(t, [][]interface{}{
		{"First Name", "Last Name", "Email", "Phone", "Budget Max", "Pets", "Neighborhoods"},
		{"Ana", "Ruiz", "Ana@Example.com", "(555) 010-2000", "$1,850", "yes", "Mission; Noe Valley"},
		{"Ben", "Cho", "ben@example.com", "", "abc", "maybe", ""},
		{"Ana", "R", "ana@example.com", "", "", "", ""},
		{"", "", "", "", "", "", ""},
		{"Cara", "", "", "+1 555 010 2000", "", "no", ""},
	})

	res, err := newTestImporter(100).Parse(buf, "clients.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.ValidCount)
	assert.Equal(t, 1, res.InvalidCount)
	assert.Equal(t, 2, res.DuplicateCount)
	assert.Equal(t, "budget_max", res.Columns["Budget Max"])

	ana := res.Rows[0]
	assert.Equal(t, 2, ana.Row)
	assert.True(t, ana.Valid())
	assert.True(t, fields.Text("ana@example.com").Equal(ana.Values["email"]))
	assert.True(t, fields.Number(1850).Equal(ana.Values["budget_max"]))
	assert.True(t, fields.Bool(true).Equal(ana.Values["has_pets"]))
	assert.True(t, fields.List("Mission", "Noe Valley").Equal(ana.Values["neighborhoods"]))

	ben := res.Rows[1]
	assert.False(t, ben.Valid())
	assert.Len(t, ben.Errors, 2)
	assert.Contains(t, ben.Errors[0], "budget_max")
	assert.Contains(t, ben.Errors[1], "has_pets")

	// email compared case-insensitively
	assert.Equal(t, 2, res.Rows[2].DuplicateOf)
	// phone compared on its last ten digits; the blank row is skipped
	assert.Equal(t, 6, res.Rows[3].Row)
	assert.Equal(t, 2, res.Rows[3].DuplicateOf)
}

func TestParse_CSV(t *testing.T) {
	csv := "first_name,email,budget_min,budget_max,needs_parking\n" +
		"Dee,dee@example.com,2000,1500,TRUE\n" +
		"Eli,not-an-email,,,\n" +
		"Fay,fay@example.com,1200,1600,n\n"

	res, err := newTestImporter(0).Parse(strings.NewReader(csv), "upload.CSV")
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	assert.Contains(t, res.Rows[0].Errors, "budget: minimum exceeds maximum")
	assert.Contains(t, res.Rows[1].Errors[0], "is not an email address")
	assert.Contains(t, res.Rows[1].Errors, "contact: email or phone is required")
	assert.True(t, res.Rows[2].Valid())
	assert.True(t, fields.Bool(false).Equal(res.Rows[2].Values["needs_parking"]))
}

func TestParse_RejectsFile(t *testing.T) {
	im := newTestImporter(1)

	_, err := im.Parse(strings.NewReader("a,b"), "clients.txt")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = im.Parse(strings.NewReader(""), "clients.csv")
	require.ErrorIs(t, err, fields.ErrInvalid)

	_, err = im.Parse(strings.NewReader("color,size\nred,L\n"), "clients.csv")
	require.ErrorIs(t, err, fields.ErrInvalid)

	_, err = im.Parse(strings.NewReader("email\na@x.io\nb@x.io\n"), "clients.csv")
	require.ErrorIs(t, err, fields.ErrInvalid)
	assert.Contains(t, err.Error(), "limit is 1")
}
