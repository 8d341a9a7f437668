package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenInSet(t *testing.T) {
	assert := assert.New(t)

	words := []string{
		"example",
		"bunch",
	}

	assert.True(TokenInSet("example", words))
	assert.False(TokenInSet("Example", words))
	assert.False(TokenInSet("elephant", words))
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("badword", Slugify("Bad-Word!"))
	assert.Equal("", Slugify("  ... "))
}

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	assert.Equal([]string{"hello", "world"}, TokenizeText("Hello, WORLD!"))
	assert.Equal([]string{"cafe"}, TokenizeText("café"))
	assert.Empty(TokenizeText("   "))
}

func TestObfuscationPattern(t *testing.T) {
	assert := assert.New(t)

	re, err := CompileObfuscated("badword")
	assert.NoError(err)
	assert.True(re.MatchString("badword"))
	assert.True(re.MatchString("BADWORD"))
	assert.True(re.MatchString("b@dw0rd"))
	assert.True(re.MatchString("b@d w0rd"))
	assert.True(re.MatchString("b.a.d.w.o.r.d"))
	assert.False(re.MatchString("goodword"))
	// substitutions only, no extra letters
	assert.False(re.MatchString("baadword"))
}
