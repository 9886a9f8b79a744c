package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/persistence/memory"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestSeedGolden(t *testing.T) {
	for _, format := range ValidFormats {
		t.Run(format, func(t *testing.T) {
			out, err := execute(t, memoryOpener(memory.NewStore()), "seed", "--file", "testdata/catalog.yaml", "--format", format)
			require.NoError(t, err)
			newGoldie(t).Assert(t, "seed_"+format, []byte(out))
		})
	}
}

func TestListGolden(t *testing.T) {
	for _, format := range ValidFormats {
		t.Run(format, func(t *testing.T) {
			open := memoryOpener(memory.NewStore())
			_, err := execute(t, open, "seed", "--file", "testdata/catalog.yaml")
			require.NoError(t, err)

			out, err := execute(t, open, "list", "--format", format)
			require.NoError(t, err)
			newGoldie(t).Assert(t, "list_"+format, []byte(out))
		})
	}
}

func TestListEmpty(t *testing.T) {
	out, err := execute(t, memoryOpener(memory.NewStore()), "list")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "list_empty_text", []byte(out))
}

func TestSeedIsIdempotent(t *testing.T) {
	open := memoryOpener(memory.NewStore())
	_, err := execute(t, open, "seed", "-f", "testdata/catalog.yaml")
	require.NoError(t, err)

	out, err := execute(t, open, "seed", "-f", "testdata/catalog.yaml", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   SeedSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, SeedSummary{Source: "testdata/catalog.yaml", Activities: 2}, resp.Data)
}

func TestSeedBuiltinCatalog(t *testing.T) {
	open := memoryOpener(memory.NewStore())
	out, err := execute(t, open, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "from built-in catalog")

	out, err = execute(t, open, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Chess Club")
	assert.Contains(t, out, "Programming Class")
}

func TestSeedInvalidCatalog(t *testing.T) {
	store := memory.NewStore()
	out, err := execute(t, memoryOpener(store), "seed", "--file", "testdata/invalid.yaml", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCatalog, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "field capacity not found")

	out, err = execute(t, memoryOpener(store), "list")
	require.NoError(t, err)
	assert.Equal(t, "No activities\n", out)
}

func TestValidate(t *testing.T) {
	out, err := execute(t, nil, "validate", "testdata/catalog.yaml")
	require.NoError(t, err)
	newGoldie(t).Assert(t, "validate_text", []byte(out))

	_, err = execute(t, nil, "validate", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestOutputFormatterTextFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: FormatText, Writer: buf}
	require.NoError(t, f.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}
