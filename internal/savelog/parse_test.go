package savelog

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"single object", `{"a":1}`, `{"a":1}`},
		{"trailing separator", "{\"a\":1}\n***\n", `{"a":1}`},
		{"glued objects keep the last", `{"a":1}{"b":2}`, `{"b":2}`},
		{"three glued objects", `{"a":1}{"b":2}{"c":3}`, `{"c":3}`},
		{"separated objects are glued then repaired", "{\"a\":1}\n***\n{\"b\":2}\n***\n", `{"b":2}`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
		{"boundary inside string data is also cut", `{"data":"x}{y"}`, `{y"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Repair(tc.in))
		})
	}
}

func TestParse_KeepsOnlyLastObject(t *testing.T) {
	env, err := Parse(`{"command":"save","version":"1","data":"first"}{"command":"save","version":"2","data":"second"}`)
	require.NoError(t, err)

	assert.Equal(t, "save", env.Command())
	assert.Equal(t, "2", env.Version())
	data, ok := env.Data()
	assert.True(t, ok)
	assert.Equal(t, "second", data)
}

func TestParse_NumericVersion(t *testing.T) {
	env, err := Parse("{\"command\":\"save\",\"version\":3,\"data\":\"<TEI/>\"}\n***\n")
	require.NoError(t, err)
	assert.EqualValues(t, 3, env.Version())
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{"", "not json", `{"command":`, `[1,2]`, "null", `{"a":1} trailing`} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPayload)

			var perr *PayloadError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, in, perr.Raw)
		})
	}
}

func TestEnvelope_WithoutVersion(t *testing.T) {
	env := Envelope{"command": "save", "version": "1", "data": "X"}
	stripped := env.WithoutVersion()

	assert.Equal(t, Envelope{"command": "save", "data": "X"}, stripped)
	assert.Contains(t, env, "version", "original envelope must not be modified")
}

func TestEnvelope_MissingFields(t *testing.T) {
	env := Envelope{"data": 12}
	assert.Empty(t, env.Command())
	_, ok := env.Data()
	assert.False(t, ok)
	assert.Nil(t, env.Version())
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(`{"command":"save","version":"1","data":"X"}`))
	f.Add([]byte("{\"a\":1}\n***\n{\"b\":2}"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		text, err := consumer.GetString()
		if err != nil {
			return
		}

		env, err := Parse(text)
		if err != nil {
			assert.ErrorIs(t, err, ErrMalformedPayload)
			return
		}
		assert.NotNil(t, env)
	})
}
