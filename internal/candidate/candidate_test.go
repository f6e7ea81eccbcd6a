package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	poster := Poster{URL: "https://img.example/p1.jpg", ByteLength: 17069}

	assert.True(t, Matches(Record{ID: "1", ByteLength: 17075}, poster, 6))
	assert.True(t, Matches(Record{ID: "2", ByteLength: 17063}, poster, 6), "offset applies in both directions")
	assert.False(t, Matches(Record{ID: "3", ByteLength: 17069}, poster, 6))
	assert.False(t, Matches(Record{ID: "4", ByteLength: 17076}, poster, 6))
}

func TestMatchesUnresolved(t *testing.T) {
	poster := Poster{ByteLength: 6}
	// An unresolved record has length zero, which would satisfy the
	// predicate arithmetically; it must still never match.
	assert.False(t, Matches(Record{ID: "1"}, poster, 6))
}

func TestResolved(t *testing.T) {
	assert.False(t, Record{ID: "1"}.Resolved())
	assert.True(t, Record{ID: "1", ByteLength: 10}.Resolved())
}
