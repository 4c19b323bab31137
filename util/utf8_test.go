package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "", TruncateUTF8("", 3))
	assert.Equal(t, "Test", TruncateUTF8("Test", 4))
	assert.Equal(t, "Tes", TruncateUTF8("Test", 3))
	assert.Equal(t, "брэд", TruncateUTF8("брэд-ЛГТМ", 4))
	assert.Equal(t, "世界", TruncateUTF8("世界", 2))
	assert.Equal(t, "世", TruncateUTF8("世界", 1))
	assert.Equal(t, "", TruncateUTF8("世界", 0))
	assert.Equal(t, "Hello, 世", TruncateUTF8("Hello, 世界", 8))
	assert.Equal(t, "\xff\xfe", TruncateUTF8("\xff\xfeabc", 2))
}
