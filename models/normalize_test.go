package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Aspirin and Heart Disease", "aspirin and heart disease"},
		{"Aspirin, and Heart-Disease!", "aspirin and heartdisease"},
		{"  Mehrfache   Leerzeichen  ", "mehrfache leerzeichen"},
		{"Ümläute bleiben erhalten", "ümläute bleiben erhalten"},
		{"???", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeTitle(c.in), "in=%q", c.in)
	}
}

func TestExternalIDPrecedence(t *testing.T) {
	p := &Paper{PMID: "123", DOI: "10.1/x"}
	assert.Equal(t, "123", p.ExternalID())

	p = &Paper{DOI: "10.1/x"}
	assert.Equal(t, "10.1/x", p.ExternalID())

	p = &Paper{}
	assert.Empty(t, p.ExternalID())
}
