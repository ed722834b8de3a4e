package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Paths may legally contain _ and %, which are LIKE metacharacters. The
// children pattern must match them literally so a prefix like sub_01 cannot
// select rows under a lookalike sibling such as subX01/.
func TestEscapeLikeNeutralizesWildcards(t *testing.T) {
	cases := map[string]string{
		"sub-01/anat":  `sub-01/anat`,
		"sub_01":       `sub\_01`,
		"100%/raw":     `100\%/raw`,
		`odd\name`:     `odd\\name`,
		"mix_of%chars": `mix\_of\%chars`,
	}
	for in, want := range cases {
		assert.Equal(t, want, escapeLike(in), "input %q", in)
	}

	assert.Equal(t, `sub\_01/%`, escapeLike("sub_01")+"/%")
}
