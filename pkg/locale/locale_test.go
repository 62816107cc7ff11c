package locale

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAcceptsPosixAndBCP47(t *testing.T) {
	for _, in := range []string{"pt-BR", "pt_BR", "pt_BR.UTF-8", " pt-br "} {
		l, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, "pt-BR", l.String(), in)
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	_, err := Parse("not a locale!")
	assert.Error(t, err)
}

func TestLongDatePortuguese(t *testing.T) {
	l := MustParse("pt_BR")
	got := l.LongDate(time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC))

	assert.Equal(t, "05 de março de 2024", strings.ToLower(got))
}

func TestLongDateEnglish(t *testing.T) {
	l := MustParse("en-US")
	got := l.LongDate(time.Date(2024, time.December, 25, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "25 de December de 2024", got)
}

func TestTitle(t *testing.T) {
	l := MustParse("pt-BR")

	assert.Equal(t, "João Paulo", l.Title("joão paulo"))
	assert.Equal(t, "Maria Das Dores", l.Title("MARIA DAS DORES"))
	assert.Equal(t, "Maria D'Ávila", l.Title("maria d'ávila"))
	assert.Equal(t, "Ana D'Ávila", l.Title("ANA D'ÁVILA"))
	assert.Equal(t, "Pedro D’Almeida", l.Title("pedro d’almeida"))
	assert.Equal(t, "Joana '", l.Title("joana '"))
}
