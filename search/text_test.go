package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignificantWords(t *testing.T) {
	stop := StopWordSet(DefaultStopWords)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"only stop words", "the a in", []string{}},
		{"lowercases and trims punctuation", "Red car, at NIGHT!", []string{"red", "car", "night"}},
		{"drops short tokens", "go to big dog", []string{"big", "dog"}},
		{"drops duplicates", "car car Car", []string{"car"}},
		{"blank", "   ", []string{}},
		{"counts characters not bytes", "猫 été 犬猫 ñu", []string{"été"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SignificantWords(tt.query, stop))
		})
	}
}

func TestSignificantWords_CustomStopWords(t *testing.T) {
	stop := StopWordSet([]string{"Car"})
	assert.Equal(t, []string{"the", "red"}, SignificantWords("the red car", stop))
}
